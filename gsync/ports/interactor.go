package ports

import (
	"github.com/ZanzyTHEbar/gacha-sync/gsync/types"
)

type Interactor interface {
	Output(message string)
	Warning(message string)
	Error(message string, err error)
	// Progress receives every pull fragment in emission order.
	Progress(fragment types.Fragment)
}

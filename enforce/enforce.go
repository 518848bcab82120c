package enforce

import (
	"github.com/EOSTribe/eos-chronicle/logger"
)

// ENFORCE guards invariants that can only break through a programming
// error. It accepts a bool or an error as the first argument.
func ENFORCE(query interface{}, args ...interface{}) {
	switch t := query.(type) {
	case bool:
		if !t {
			logger.Printf("enforce", "ENFORCE: %v", args)
			panic(args)
		}
	case error:
		if t != nil {
			logger.Printf("enforce", "ENFORCE: %v", args)
			panic(t)
		}
	}
}

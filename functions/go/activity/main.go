// Command activity is a single child executable that serves several
// workflow activities, selected by the "reqtype" field of the event.
package main

import (
	"github.com/3s-rg-codes/lambda-relay/pkg/functionRuntimeInterface"
)

func main() {
	f := functionRuntimeInterface.New()

	w := &worker{logger: f.Logger(), fails: randomFails}
	f.Ready(w.handle)
}

// Command lagbuffer replays jittered event streams through the reconcilers.
package main

import "github.com/sarchlab/lagbuffer/lagbuffer/cmd"

func main() {
	cmd.Execute()
}

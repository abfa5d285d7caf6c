// psicoctl is the operations CLI for the psychosocial risk automation
// pipeline.
package main

import "github.com/nexohr/psicorisco/internal/interfaces/cli"

func main() {
	cli.Execute()
}

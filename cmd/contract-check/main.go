// Command contract-check validates a contract pack document: the embedded
// default when no argument is given, or an external JSON/YAML file when a
// path is supplied. A valid pack prints its version and endpoint count.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"herdcore/internal/contract"
)

var exitFunc = os.Exit

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: contract-check [pack-file]\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	exitFunc(run(flag.Args(), os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	raw := contract.Pack()
	source := "embedded"
	if len(args) > 1 {
		fmt.Fprintln(stderr, "contract-check: at most one pack file")
		return 2
	}
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintf(stderr, "contract-check: %v\n", err)
			return 1
		}
		raw = data
		source = args[0]
	}
	registry, err := contract.Load(raw)
	if err != nil {
		fmt.Fprintf(stderr, "contract-check: %s: %v\n", source, err)
		return 1
	}
	fmt.Fprintf(stdout, "contract pack %s ok: version %s, %d roles, %d endpoints\n",
		source, registry.Version(), len(registry.Roles()), registry.Endpoints())
	return 0
}

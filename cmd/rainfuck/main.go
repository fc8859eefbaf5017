// Command rainfuck runs a program either through the JIT (default) or the
// fallback interpreter (--no-jit).
package main

import (
	"fmt"
	"os"

	"rainfuck/internal/interp"
	"rainfuck/internal/jit"
	"rainfuck/internal/lang"
)

// version is the engine's reported version, printed in the banner when the
// CLI is invoked with no program argument.
const version = "0.1.0"

func usage() {
	fmt.Printf("Rainfuck version %s\n", version)
	fmt.Println("usage: rainfuck [--no-jit] program.bf")
}

func readSource(file string) []byte {
	src, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return src
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		return
	}

	useJIT := true
	file := args[0]
	if file == "--no-jit" {
		useJIT = false
		if len(args) < 2 {
			usage()
			return
		}
		file = args[1]
	}

	src := readSource(file)

	if !useJIT {
		runInterpreted(src)
		return
	}
	runJIT(src)
}

func runInterpreted(src []byte) {
	if err := interp.New().Run(src); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runJIT(src []byte) {
	prog, err := jit.Compile(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer prog.Close()

	tape := make([]byte, lang.TapeSize)
	if err := prog.Run(tape); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

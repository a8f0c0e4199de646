package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xyproto/env/v2"

	"github.com/tac3/tac3"
)

func main() {
	doMain(os.Stdout, os.Stderr, os.Exit)
}

// doMain is separated out for the purpose of unit testing.
func doMain(stdOut io.Writer, stdErr io.Writer, exit func(code int)) {
	// The environment is cached on first read, so reload it for defaults set since.
	env.Load()

	flag.CommandLine.SetOutput(stdErr)

	var help bool
	flag.BoolVar(&help, "h", false, "print usage")

	flag.Parse()

	if help || flag.NArg() == 0 {
		printUsage(stdErr)
		exit(0)
	}

	subCmd := flag.Arg(0)
	switch subCmd {
	case "rewrite":
		doRewrite(flag.Args()[1:], stdOut, stdErr, exit)
	case "nextuse":
		doNextUse(flag.Args()[1:], stdOut, stdErr, exit)
	case "run":
		doRun(flag.Args()[1:], stdOut, stdErr, exit)
	case "asm":
		doAsm(flag.Args()[1:], stdOut, stdErr, exit)
	default:
		fmt.Fprintln(stdErr, "invalid command")
		printUsage(stdErr)
		exit(1)
	}
}

// configFlags registers the flags shared by every command compiling a program. Their defaults come from the
// TAC3_ALLOCATOR and TAC3_VALIDATE environment variables.
type configFlags struct {
	allocator string
	validate  bool
	trace     bool
}

func newConfigFlags(flags *flag.FlagSet) *configFlags {
	c := &configFlags{}
	flags.StringVar(&c.allocator, "allocator", env.Str("TAC3_ALLOCATOR", tac3.PolicyNextUse.String()),
		"register allocation policy: nextuse or fixed. Defaults to $TAC3_ALLOCATOR if set.")
	flags.BoolVar(&c.validate, "validate", !env.Has("TAC3_VALIDATE") || env.Bool("TAC3_VALIDATE"),
		"check the register file invariants after every instruction. Defaults to $TAC3_VALIDATE if set.")
	flags.BoolVar(&c.trace, "trace", false, "print allocation decisions to stderr")
	return c
}

func (c *configFlags) config(stdErr io.Writer) (*tac3.Config, error) {
	policy, err := tac3.ParsePolicy(c.allocator)
	if err != nil {
		return nil, err
	}
	config := tac3.NewConfig().WithAllocator(policy).WithValidation(c.validate)
	if c.trace {
		config = config.WithTrace(stdErr)
	}
	return config, nil
}

// compile reads the source named by the first argument of flags, "-" being stdin, and compiles it.
func compile(flags *flag.FlagSet, c *configFlags, stdErr io.Writer, exit func(code int), printUsage func()) *tac3.Program {
	if flags.NArg() < 1 {
		fmt.Fprintln(stdErr, "missing path to source file")
		printUsage()
		exit(1)
	}
	path := flags.Arg(0)

	var source []byte
	var err error
	if path == "-" {
		source, err = io.ReadAll(os.Stdin)
	} else {
		source, err = os.ReadFile(path)
	}
	if err != nil {
		fmt.Fprintf(stdErr, "error reading source: %v\n", err)
		exit(1)
	}

	config, err := c.config(stdErr)
	if err != nil {
		fmt.Fprintf(stdErr, "error configuring: %v\n", err)
		exit(1)
	}

	p, err := tac3.Compile(string(source), config)
	if err != nil {
		var perr *tac3.ParseError
		if errors.As(err, &perr) {
			fmt.Fprintf(stdErr, "error parsing %s:%v\n", path, perr)
		} else {
			fmt.Fprintf(stdErr, "error compiling: %v\n", err)
		}
		exit(1)
	}
	return p
}

func doRewrite(args []string, stdOut, stdErr io.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("rewrite", flag.ExitOnError)
	flags.SetOutput(stdErr)

	var help bool
	flags.BoolVar(&help, "h", false, "print usage")

	var residents bool
	flags.BoolVar(&residents, "residents", false, "print the register of each variable resident at the end")

	c := newConfigFlags(flags)

	_ = flags.Parse(args)

	usage := func() { printCommandUsage(stdErr, flags, "rewrite") }
	if help {
		usage()
		exit(0)
	}

	p := compile(flags, c, stdErr, exit, usage)
	fmt.Fprint(stdOut, p)
	if residents {
		r := p.Residents()
		for _, v := range p.Variables() {
			if reg, ok := r[v]; ok {
				fmt.Fprintf(stdOut, "# %s in %s\n", v, reg)
			}
		}
	}
	exit(0)
}

func doNextUse(args []string, stdOut, stdErr io.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("nextuse", flag.ExitOnError)
	flags.SetOutput(stdErr)

	var help bool
	flags.BoolVar(&help, "h", false, "print usage")

	c := newConfigFlags(flags)

	_ = flags.Parse(args)

	usage := func() { printCommandUsage(stdErr, flags, "nextuse") }
	if help {
		usage()
		exit(0)
	}

	p := compile(flags, c, stdErr, exit, usage)
	fmt.Fprint(stdOut, p.NextUse())
	exit(0)
}

func doRun(args []string, stdOut, stdErr io.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("run", flag.ExitOnError)
	flags.SetOutput(stdErr)

	var help bool
	flags.BoolVar(&help, "h", false, "print usage")

	var sets sliceFlag
	flags.Var(&sets, "set", "name=value pair of the initial value of a variable. "+
		"Can be specified multiple times. Variables not set start at zero.")

	var verify bool
	flags.BoolVar(&verify, "verify", false, "also run the source directly and fail if any variable differs")

	c := newConfigFlags(flags)

	_ = flags.Parse(args)

	usage := func() { printCommandUsage(stdErr, flags, "run") }
	if help {
		usage()
		exit(0)
	}

	mem := map[string]int64{}
	for _, s := range sets {
		name, value, ok := strings.Cut(s, "=")
		if !ok {
			fmt.Fprintf(stdErr, "invalid variable assignment %q: must be name=value\n", s)
			exit(1)
		}
		x, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			fmt.Fprintf(stdErr, "invalid value for %s: %v\n", name, err)
			exit(1)
		}
		mem[name] = x
	}

	p := compile(flags, c, stdErr, exit, usage)
	if verify {
		if err := p.Verify(mem); err != nil {
			fmt.Fprintf(stdErr, "error verifying: %v\n", err)
			exit(1)
		}
	}
	final, err := p.Run(mem)
	if err != nil {
		fmt.Fprintf(stdErr, "error running: %v\n", err)
		exit(1)
	}
	fmt.Fprintln(stdOut, tac3.FormatMemory(final))
	exit(0)
}

func doAsm(args []string, stdOut, stdErr io.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("asm", flag.ExitOnError)
	flags.SetOutput(stdErr)

	var help bool
	flags.BoolVar(&help, "h", false, "print usage")

	var raw bool
	flags.BoolVar(&raw, "raw", false, "write the machine code as is instead of a hex dump")

	c := newConfigFlags(flags)

	_ = flags.Parse(args)

	usage := func() { printCommandUsage(stdErr, flags, "asm") }
	if help {
		usage()
		exit(0)
	}

	p := compile(flags, c, stdErr, exit, usage)
	code, err := p.Assemble()
	if err != nil {
		fmt.Fprintf(stdErr, "error assembling: %v\n", err)
		exit(1)
	}
	if raw {
		_, _ = stdOut.Write(code)
	} else {
		fmt.Fprint(stdOut, hex.Dump(code))
	}
	exit(0)
}

func printUsage(stdErr io.Writer) {
	fmt.Fprintln(stdErr, "tac3 CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  tac3 <command>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Commands:")
	fmt.Fprintln(stdErr, "  rewrite\tRewrites three-address code for the three register machine")
	fmt.Fprintln(stdErr, "  nextuse\tPrints the next-use table of three-address code")
	fmt.Fprintln(stdErr, "  run\t\tRuns rewritten three-address code on the simulated machine")
	fmt.Fprintln(stdErr, "  asm\t\tAssembles rewritten three-address code for amd64")
}

func printCommandUsage(stdErr io.Writer, flags *flag.FlagSet, cmd string) {
	fmt.Fprintln(stdErr, "tac3 CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintf(stdErr, "Usage:\n  tac3 %s <options> <path to source file>\n", cmd)
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Options:")
	flags.PrintDefaults()
}

type sliceFlag []string

func (f *sliceFlag) String() string {
	return strings.Join(*f, ",")
}

func (f *sliceFlag) Set(s string) error {
	*f = append(*f, s)
	return nil
}

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/seafork/devmirror"
	"github.com/seafork/devmirror/internal/device"
	"github.com/seafork/devmirror/internal/output"
	"github.com/seafork/devmirror/internal/session"
)

type CliRequest struct {
	verbose     bool
	quiet       bool
	plain       bool
	scopeDir    string
	action      string
	actionFlags map[string]interface{}
	actionArgs  []string
}

func parseFlags(args []string, out io.Writer, errOut io.Writer) (request *CliRequest, exitCode int) {
	flags := flag.NewFlagSet("", flag.ExitOnError)
	flags.Usage = func() {
		flags.Output().Write([]byte(`
Usage:
   devmirror [-v|-q] [-p] [-dir=...] [-h] <ACTION> [FLAG] [TARGET]

 ACTIONs:  backup  restore  tree  roots  status

`))
		flags.PrintDefaults()
		flags.Output().Write([]byte(`
 FLAG(s) and TARGET(s) are action-specific.
 You can read the help on any action:
    devmirror <ACTION> -h

`))

	}

	request = &CliRequest{}
	var generalHelpRequested bool
	flags.BoolVar(&request.verbose, "v", false, "Output more details on what is done (verbose mode)")
	flags.BoolVar(&request.quiet, "q", false, "Output as little as possible, i.e. only requested information (quiet mode)")
	flags.BoolVar(&request.plain, "p", false, "Do not use terminal escape sequences (plain mode)")
	flags.StringVar(&request.scopeDir, "dir", "", "Backup scope directory holding the records and session roots\n(defaults to the working directory)")
	flags.BoolVar(&generalHelpRequested, "h", false, "Display general usage help")

	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(errOut, "%s\nUsage help: devmirror -h\n", err)
			exitCode = 2
			request = nil
		}
	}()

	flags.Parse(args) //exits on error

	if generalHelpRequested {
		flags.Usage()
		exitCode = 0
		request = nil
		return
	}
	if flags.NArg() == 0 {
		err = errors.New("No arguments given!")
		return
	}
	if request.verbose && request.quiet {
		err = errors.New("Quiet mode and verbose mode are mutually exclusive!")
		return
	}
	if request.scopeDir == "" {
		request.scopeDir, _ = os.Getwd()
	}

	request.action = flags.Arg(0)
	request.actionFlags = make(map[string]interface{})
	request.actionArgs = flags.Args()[1:]
	actionDescriptionIndent := "  "
	actionDescription := actionDescriptionIndent
	flagSpecification := ""
	argumentSpecification := ""

	actionParams := flag.NewFlagSet(request.action+" action", flag.ExitOnError)
	actionParams.Usage = func() {
		fmt.Fprintf(actionParams.Output(), `
Usage of %s action:
   devmirror [MODE] %s%s%s

%s
`, request.action, request.action, flagSpecification, argumentSpecification, actionDescription)
		if len(flagSpecification) > 0 {
			fmt.Fprint(actionParams.Output(), `
 Available flags:
`)
		}
		actionParams.PrintDefaults()
		fmt.Fprintf(actionParams.Output(), `
 Global MODE documentation can be shown by:
    devmirror -h

`)
	}

ActionParamCheck:
	switch request.action {
	case "backup":
		flagSpecification = " [-fresh] [-desc=...] [-source=...] [-no-space-check]"
		argumentSpecification = " [FOLDER...]"
		actionDescription += "Run one backup session. If one or more FOLDERs are given only those\n" +
			actionDescriptionIndent + "top-level device folders are considered, otherwise all folders are\n" +
			actionDescriptionIndent + "discovered and the configured exclusions apply. Files already on\n" +
			actionDescriptionIndent + "record are skipped, Ctrl+C stops after the current file."
		request.actionFlags["fresh"] = actionParams.Bool("fresh", false, "do not merge into today's session root if one exists,\nstart a separate one")
		request.actionFlags["desc"] = actionParams.String("desc", "", "description stored with a newly created session root")
		request.actionFlags["source"] = actionParams.String("source", "", "absolute device source root (default /sdcard)")
		request.actionFlags["no-space-check"] = actionParams.Bool("no-space-check", false, "skip the free space preflight on the destination")
		actionParams.Parse(request.actionArgs)
		request.actionArgs = actionParams.Args()
		//beyond flags all arguments are optional
	case "restore":
		flagSpecification = " [-latest]"
		argumentSpecification = " DEVICEPATH..."
		actionDescription += "Push previously backed-up file(s) back to the device. Paths are\n" +
			actionDescriptionIndent + "relative to the device source root as printed by the tree action.\n" +
			actionDescriptionIndent + "If a path exists in multiple session roots you are asked which one\n" +
			actionDescriptionIndent + "to restore from."
		request.actionFlags["latest"] = actionParams.Bool("latest", false, "always restore from the most recent session root, do not ask")
		request.actionFlags["source"] = actionParams.String("source", "", "absolute device target root (default /sdcard)")
		actionParams.Parse(request.actionArgs)
		request.actionArgs = actionParams.Args()
		if actionParams.NArg() < 1 {
			err = errors.New("no targets given")
			break ActionParamCheck
		}
	case "tree":
		actionDescription += "Display all restorable paths as a tree which represents the union of\n" +
			actionDescriptionIndent + "all session roots. Each file lists the roots it can be restored from."
		actionParams.Parse(request.actionArgs)
		request.actionArgs = actionParams.Args()
		if actionParams.NArg() > 0 {
			err = errors.New("command accepts no arguments")
			break ActionParamCheck
		}
	case "roots":
		actionDescription += "List all session roots with their description and file count."
		actionParams.Parse(request.actionArgs)
		request.actionArgs = actionParams.Args()
		if actionParams.NArg() > 0 {
			err = errors.New("command accepts no arguments")
			break ActionParamCheck
		}
	case "status":
		actionDescription += "Print every device path on record, i.e. everything that future\n" +
			actionDescriptionIndent + "backup sessions will skip."
		actionParams.Parse(request.actionArgs)
		request.actionArgs = actionParams.Args()
		if actionParams.NArg() > 0 {
			err = errors.New("command accepts no arguments")
			break ActionParamCheck
		}
	default:
		err = fmt.Errorf(`unknown action "%s"`, request.action)
	}
	return
}

func (rq *CliRequest) execute() error {
	config := devmirror.CreateConfig{AllowEscapeSequences: !rq.plain}
	if rq.verbose {
		config.Verbosity = devmirror.VerboseMode
	}
	if rq.quiet {
		config.Verbosity = devmirror.QuietMode
	}
	if source, given := rq.actionFlags["source"]; given {
		config.DeviceRoot = *(source.(*string))
	}
	if skip, given := rq.actionFlags["no-space-check"]; given {
		config.SkipSpaceCheck = *(skip.(*bool))
	}

	api, err := devmirror.Open(rq.scopeDir, device.NewADB(""), config)
	if err != nil {
		return err
	}

	switch rq.action {
	case "backup":
		var folders []string
		if len(rq.actionArgs) > 0 {
			folders = rq.actionArgs
		}
		cancel := make(chan struct{})
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)
		defer signal.Reset(os.Interrupt)
		go func() {
			<-interrupt
			fmt.Fprintln(os.Stderr, "\nStopping after the current file...")
			close(cancel)
		}()

		_, err := api.Backup(devmirror.BackupRequest{
			Folders:     folders,
			Description: *(rq.actionFlags["desc"].(*string)),
			FreshRoot:   *(rq.actionFlags["fresh"].(*bool)),
			Cancel:      cancel,
			OnProgress:  progressTicker(rq.quiet),
		})
		return err
	case "restore":
		choose := PromptUser(!rq.plain)
		if *(rq.actionFlags["latest"].(*bool)) {
			choose = AutoChooseLatest(rq.quiet)
		}
		return api.Restore(rq.actionArgs, choose)
	case "tree":
		api.PrintRestoreTree()
	case "roots":
		api.PrintRoots()
	case "status":
		api.PrintLedger()
	default:
		panic("bad action")
	}
	return nil
}

// progressTicker prints one status character per processed file so long
// sessions show life without flooding the terminal.
func progressTicker(quiet bool) func(session.Progress) {
	if quiet {
		return nil
	}
	sawFiles := false
	return func(p session.Progress) {
		if p.Path == "" {
			if sawFiles && p.Phase == session.Committing {
				fmt.Fprintln(os.Stdout)
			}
			return
		}
		sawFiles = true
		fmt.Fprintf(os.Stdout, "%c", p.Status)
	}
}

func main() {
	rq, rc := parseFlags(os.Args[1:], os.Stdout, os.Stderr)
	if rc != 0 || rq == nil {
		os.Exit(rc)
	}
	if err := rq.execute(); err != nil {
		message := err.Error()
		if !rq.plain {
			message = output.TerminalFormatAsError(message)
		}
		fmt.Fprintln(os.Stderr, message)
		os.Exit(1)
	}
	os.Exit(0)
}

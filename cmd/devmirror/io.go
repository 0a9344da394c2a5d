package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"golang.org/x/term"

	"github.com/seafork/devmirror"
)

// PromptUser asks which session root a path shall be restored from by reading
// a single digit. Option 0 skips the path, as does Ctrl+C.
func PromptUser(allowEscapeSequences bool) devmirror.RootChooser {
	return func(path string, roots []string) (choice string) {
		if len(roots) == 1 {
			return roots[0]
		}
		if len(roots) > 9 {
			// digit selection caps out, only offer the newest nine
			roots = roots[len(roots)-9:]
		}

		digitToRoot := make(map[rune]string)
		var displayOptions []string
		for i, root := range roots {
			digit := rune('1' + i)
			digitToRoot[digit] = root
			printDigit := fmt.Sprintf("\x1B[1m\x1B[4m%c\x1B[0m", digit)
			if !allowEscapeSequences {
				printDigit = fmt.Sprintf("[%c]", digit)
			}
			displayOptions = append(displayOptions, fmt.Sprintf("%s %s", printDigit, root))
		}
		digitToRoot['0'] = ""

		key := make(chan rune)
		interrupt := make(chan os.Signal, 1)

		signal.Notify(interrupt, os.Interrupt)
		defer func() { signal.Reset(os.Interrupt) }()

		rawMode := false
		out := func(text string) {
			fmt.Fprint(os.Stdout, text)
		}
		rawOut := func(text string) {
			if rawMode {
				fmt.Fprint(os.Stdout, text)
			}
		}

		if allowEscapeSequences {
			if oldTermState, err := term.MakeRaw(int(os.Stdin.Fd())); err == nil {
				rawMode = true
				defer term.Restore(int(os.Stdin.Fd()), oldTermState)
			} // else terminal is not raw, i.e. ENTER is required to confirm input -> acceptable fallback
		}
		waitForKey := func() {
			reader := bufio.NewReaderSize(os.Stdin, 1)
			input, _ := reader.ReadByte()
			if !rawMode && reader.Buffered() > 0 {
				if extra, _ := reader.ReadByte(); extra != '\n' && extra != '\r' {
					key <- '?'
					reader.Reset(os.Stdin)
					return
				}
			}
			reader.Reset(os.Stdin)
			if rawMode && input == 3 { //Ctrl+C
				interrupt <- os.Interrupt
			} else {
				rawOut(fmt.Sprintf("%c", input))
				key <- rune(input)
			}
		}

		prompt := fmt.Sprintf("Restore %s from (%s / 0 to skip): ", path, strings.Join(displayOptions, " / "))
		out(prompt)
		for {
			go waitForKey()
			select {
			case digitPressed := <-key:
				if selection, found := digitToRoot[digitPressed]; found {
					rawOut("\r\n")
					return selection
				}
				rawOut("\a\033[1D") //bell and move cursor left by 1
				if !rawMode {
					out(prompt)
				}
			case <-interrupt:
				out("<CANCELLED>\r\n")
				return "" //skips the path as per type documentation
			}
		}
	}
}

// AutoChooseLatest restores every path from the most recent session root
// containing it without asking.
func AutoChooseLatest(quiet bool) devmirror.RootChooser {
	return func(path string, roots []string) string {
		chosen := devmirror.LatestRoot(path, roots)
		if !quiet {
			fmt.Fprintf(os.Stdout, "Restore %s => [%s]\n", path, chosen)
		}
		return chosen
	}
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/rewired-gh/setoracle/internal/models"
	"github.com/rewired-gh/setoracle/internal/resolver"
)

// consoleSelector asks the user to pick a candidate on a line-based terminal.
type consoleSelector struct {
	in  *bufio.Reader
	out io.Writer
}

func newConsoleSelector(in io.Reader, out io.Writer) *consoleSelector {
	return &consoleSelector{in: bufio.NewReader(in), out: out}
}

// Present lists candidates and re-prompts until the input parses.
// End of input cancels.
func (s *consoleSelector) Present(ctx context.Context, candidates []models.Candidate, allowNextPage bool) (resolver.Decision, error) {
	fmt.Fprintln(s.out, "Matching artists:")
	for i, c := range candidates {
		fmt.Fprintf(s.out, "  %d. %s\n", i+1, c.Label())
	}

	prompt := fmt.Sprintf("Select [1-%d], q to cancel: ", len(candidates))
	if allowNextPage {
		prompt = fmt.Sprintf("Select [1-%d], n for next page, q to cancel: ", len(candidates))
	}

	for {
		if err := ctx.Err(); err != nil {
			return resolver.Decision{}, err
		}
		fmt.Fprint(s.out, prompt)

		line, err := s.in.ReadString('\n')
		if err == io.EOF && strings.TrimSpace(line) == "" {
			fmt.Fprintln(s.out)
			return resolver.Decision{Action: resolver.Cancel}, nil
		}
		if err != nil && err != io.EOF {
			return resolver.Decision{}, eris.Wrap(err, "read selection")
		}

		d, perr := parseChoice(line, len(candidates), allowNextPage)
		if perr == nil {
			return d, nil
		}
		fmt.Fprintln(s.out, perr.Error())
	}
}

// parseChoice maps one input line to a decision against n listed candidates.
func parseChoice(line string, n int, allowNextPage bool) (resolver.Decision, error) {
	input := strings.ToLower(strings.TrimSpace(line))
	switch input {
	case "":
		return resolver.Decision{}, eris.New("please enter a choice")
	case "q", "quit":
		return resolver.Decision{Action: resolver.Cancel}, nil
	case "n", "next":
		if !allowNextPage {
			return resolver.Decision{}, eris.New("no next page available")
		}
		return resolver.Decision{Action: resolver.NextPage}, nil
	}

	idx, err := strconv.Atoi(input)
	if err != nil || idx < 1 || idx > n {
		return resolver.Decision{}, eris.Errorf("enter a number between 1 and %d", n)
	}
	return resolver.Decision{Action: resolver.Select, Index: idx}, nil
}

// Command ticketparse runs ticket field extraction over OCR text read from a
// file or stdin and prints the fields and fingerprint.
//
//	ticketparse [-rules rules.yaml] [-explain] [-format json|yaml] [file]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/resaletix/resaletix-backend/internal/ticket"
	"gopkg.in/yaml.v3"
)

type output struct {
	ParsedFields ticket.Fields  `json:"parsedFields" yaml:"parsed_fields"`
	Fingerprint  string         `json:"fingerprint" yaml:"fingerprint"`
	Matches      []ticket.Match `json:"matches,omitempty" yaml:"matches,omitempty"`
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "ticketparse:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("ticketparse", flag.ContinueOnError)
	rulesPath := fs.String("rules", "", "YAML rule table replacing the built-in rules")
	explain := fs.Bool("explain", false, "Include which rule matched each field")
	format := fs.String("format", "json", "Output format: json or yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rules := ticket.DefaultRules()
	if *rulesPath != "" {
		var err error
		if rules, err = ticket.LoadRulesFile(*rulesPath); err != nil {
			return err
		}
	}

	in := stdin
	if fs.NArg() > 0 && fs.Arg(0) != "-" {
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	text, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	fields, matches := ticket.NewExtractor(rules).ExtractWithMatches(string(text))
	out := output{ParsedFields: fields, Fingerprint: ticket.FingerprintFields(fields)}
	if *explain {
		out.Matches = matches
	}

	switch *format {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(out)
	default:
		return fmt.Errorf("unknown format %q", *format)
	}
}

package params

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Describe writes a markdown table documenting every parameter in defs.
func Describe(w io.Writer, defs []Param) error {
	if _, err := fmt.Fprintln(w, "| Name | Key | Type | Default | Legal values | Description |"); err != nil {
		return err
	}

	fmt.Fprintln(w, "|------|-----|------|---------|--------------|-------------|")

	for _, p := range defs {
		def := p.Default.String()
		if p.DefaultFrom != "" {
			def = "= " + p.DefaultFrom
		}

		fmt.Fprintf(w, "| %s | %s | %s | %s | %s | %s |\n",
			p.Name, p.Key, p.Kind, def, legalValues(p), p.Doc,
		)
	}

	return nil
}

func legalValues(p Param) string {
	switch {
	case p.Kind == KindChoice:
		return strings.Join(p.Choices, ", ")
	case p.Kind == KindInt && p.HasMin && p.HasMax:
		return strconv.FormatInt(p.Min, 10) + " to " + strconv.FormatInt(p.Max, 10)
	case p.Kind == KindInt && p.HasMin:
		return ">= " + strconv.FormatInt(p.Min, 10)
	case p.Kind == KindInt && p.HasMax:
		return "<= " + strconv.FormatInt(p.Max, 10)
	case p.Kind == KindFloat:
		return "finite"
	default:
		return "any"
	}
}

// Package instructions holds the static instruction payload handed to the
// model: reference text on patient-ventilator asynchronies followed by the
// template the model must use to structure its analysis.
package instructions

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed domain.txt
var domainKnowledge string

// Section is one named subsection of the output template.
type Section struct {
	Title string
	Items []string
}

// Template is the ordered output structure the model is asked to follow.
type Template struct {
	Sections []Section
	Closing  string
}

// Payload is the full instruction set. DomainKnowledge always renders before
// OutputTemplate.
type Payload struct {
	DomainKnowledge string
	OutputTemplate  Template
}

var analysisSections = []Section{
	{
		Title: "Waveform Identification",
		Items: []string{
			"Available waveforms",
			"Quality of signals",
			"Scale and timing markers",
			"Ventilator settings shown",
		},
	},
	{
		Title: "Pattern Analysis",
		Items: []string{
			"Timing relationships",
			"Breath-to-breath consistency",
			"Specific pattern markers present",
			"Relationship between waveforms",
		},
	},
	{
		Title: "Asynchrony Classification",
		Items: []string{
			"Primary asynchrony identified",
			"Supporting evidence from each waveform",
			"Pattern matching to reference criteria",
			"Exclusion of other asynchronies",
			"Frequency assessment",
		},
	},
	{
		Title: "Recommendations",
		Items: []string{
			"Specific ventilator adjustments",
			"Order of priority",
			"Expected improvements",
			"Monitoring plan",
		},
	},
	{
		Title: "Educational Summary",
		Items: []string{
			"Key recognition features",
			"Similar pattern distinctions",
			"Verification steps",
			"Documentation points",
		},
	},
}

const closing = "Always provide specific evidence from waveforms and explain why other asynchronies were excluded."

// Build returns the instruction payload. Every call returns an independent
// copy with identical content.
func Build() Payload {
	p := Payload{
		DomainKnowledge: domainKnowledge,
		OutputTemplate: Template{
			Sections: analysisSections,
			Closing:  closing,
		},
	}
	return p.Clone()
}

// Clone returns a deep copy of p.
func (p Payload) Clone() Payload {
	sections := make([]Section, len(p.OutputTemplate.Sections))
	for i, s := range p.OutputTemplate.Sections {
		sections[i] = Section{Title: s.Title, Items: append([]string(nil), s.Items...)}
	}
	p.OutputTemplate.Sections = sections
	return p
}

// Empty reports whether p carries no text at all.
func (p Payload) Empty() bool {
	return strings.TrimSpace(p.DomainKnowledge) == "" && len(p.OutputTemplate.Sections) == 0 && p.OutputTemplate.Closing == ""
}

// String renders the template as numbered markdown subsections.
func (t Template) String() string {
	var b strings.Builder
	for i, s := range t.Sections {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "### %d. %s\n", i+1, s.Title)
		for _, item := range s.Items {
			fmt.Fprintf(&b, "- %s\n", item)
		}
	}
	if t.Closing != "" {
		if len(t.Sections) > 0 {
			b.WriteString("\n")
		}
		b.WriteString(t.Closing)
		b.WriteString("\n")
	}
	return b.String()
}

// Titles returns the section titles in order.
func (t Template) Titles() []string {
	out := make([]string, len(t.Sections))
	for i, s := range t.Sections {
		out[i] = s.Title
	}
	return out
}

// String concatenates the domain knowledge and the output template.
func (p Payload) String() string {
	var b strings.Builder
	b.WriteString(p.DomainKnowledge)
	if p.DomainKnowledge != "" && !strings.HasSuffix(p.DomainKnowledge, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(p.OutputTemplate.String())
	return b.String()
}

// Package prompt assembles the final prompt sent to the language model.
package prompt

import (
	"fmt"
	"strings"

	"github.com/oswaldbot/relay-go/pkg/aggregate"
)

// Subject is a third party referenced by the question.
// Profile is empty when nothing is known about them.
type Subject struct {
	Name    string
	Profile string
}

// Input carries everything the composer needs for one answer.
type Input struct {
	// Question is the user's literal question. It is embedded verbatim.
	Question string

	// Context is the aggregated search context.
	Context aggregate.Context

	// RequesterName is the display name of the person asking. Optional.
	RequesterName string

	// RequesterProfile is the private behavioral summary of the person asking. Optional.
	RequesterProfile string

	// Subjects are the people the question mentions.
	Subjects []Subject
}

// Composer builds final-answer prompts around a persona directive.
type Composer struct {
	persona string
}

// NewComposer creates a Composer. An empty persona selects DefaultPersona.
func NewComposer(persona string) *Composer {
	if strings.TrimSpace(persona) == "" {
		persona = DefaultPersona
	}
	return &Composer{persona: persona}
}

// Compose returns the complete prompt for in.
//
// Sections appear in a fixed order: persona, situation, private requester
// notes, subject notes, intel, mission. Requester and subject sections are
// omitted when there is nothing to say. The intel and mission wording depends
// on the context state, with distinct wording for Absent and Empty.
func (c *Composer) Compose(in Input) string {
	sections := []string{c.persona}

	if in.RequesterName != "" {
		sections = append(sections, situationHeader+"\n"+fmt.Sprintf(situationNamedTemplate, in.RequesterName, in.Question))
	} else {
		sections = append(sections, situationHeader+"\n"+fmt.Sprintf(situationTemplate, in.Question))
	}

	if profile := strings.TrimSpace(in.RequesterProfile); profile != "" {
		sections = append(sections, profileHeader+"\n"+fmt.Sprintf(profileTemplate, profile))
	}

	for _, subject := range in.Subjects {
		name := strings.TrimSpace(subject.Name)
		if name == "" {
			continue
		}
		header := fmt.Sprintf(subjectHeader, strings.ToUpper(name))
		if profile := strings.TrimSpace(subject.Profile); profile != "" {
			sections = append(sections, header+"\n"+fmt.Sprintf(subjectKnownTemplate, name, profile))
		} else {
			sections = append(sections, header+"\n"+fmt.Sprintf(subjectUnknownTemplate, name, name))
		}
	}

	intel, mission := intelSection(in.Context)
	sections = append(sections, intelHeader+"\n"+intel, missionHeader+"\n"+mission)

	return strings.Join(sections, "\n\n")
}

func intelSection(ctx aggregate.Context) (intel, mission string) {
	switch {
	case ctx.State == aggregate.Present && strings.TrimSpace(ctx.Text) != "":
		return fmt.Sprintf(intelPresentTemplate, ctx.Text), missionWithIntel
	case ctx.State == aggregate.Absent:
		return intelAbsent, missionOwnKnowledge
	default:
		return intelEmpty, missionOwnKnowledge
	}
}

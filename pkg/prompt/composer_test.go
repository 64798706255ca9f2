package prompt_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oswaldbot/relay-go/pkg/aggregate"
	"github.com/oswaldbot/relay-go/pkg/prompt"
)

const (
	ownKnowledge = "based on your own knowledge only"
	useIntel     = "Use the intel to be accurate"
	notSearched  = "No web search was performed"
	searchFailed = "A web search was attempted"
)

func TestCompose_AlwaysStartsWithPersona(t *testing.T) {
	out := prompt.NewComposer("").Compose(prompt.Input{Question: "hi"})
	assert.True(t, strings.HasPrefix(out, prompt.DefaultPersona))

	custom := prompt.NewComposer("You are terse.").Compose(prompt.Input{Question: "hi"})
	assert.True(t, strings.HasPrefix(custom, "You are terse.\n\n"))
}

func TestCompose_QuestionVerbatim(t *testing.T) {
	questions := []string{
		"What is the capital of Canada?",
		"  spacing   and CAPS, kept!  ",
		"multi\nline question",
	}
	composer := prompt.NewComposer("")
	for _, q := range questions {
		assert.Contains(t, composer.Compose(prompt.Input{Question: q}), q)
	}
}

func TestCompose_AbsentBranch(t *testing.T) {
	out := prompt.NewComposer("").Compose(prompt.Input{
		Question: "hello how are you",
		Context:  aggregate.Context{State: aggregate.Absent},
	})

	assert.Contains(t, out, notSearched)
	assert.Contains(t, out, ownKnowledge)
	assert.NotContains(t, out, useIntel)
	assert.NotContains(t, out, searchFailed)
}

func TestCompose_EmptyBranchIsDistinct(t *testing.T) {
	composer := prompt.NewComposer("")
	empty := composer.Compose(prompt.Input{Question: "q", Context: aggregate.Context{State: aggregate.Empty}})
	absent := composer.Compose(prompt.Input{Question: "q", Context: aggregate.Context{State: aggregate.Absent}})

	assert.Contains(t, empty, searchFailed)
	assert.Contains(t, empty, ownKnowledge)
	assert.NotContains(t, empty, useIntel)
	assert.NotEqual(t, empty, absent)
}

func TestCompose_PresentBranch(t *testing.T) {
	text := "Title: Canada\nContent: Ottawa is the capital"
	out := prompt.NewComposer("").Compose(prompt.Input{
		Question: "What is the capital of Canada?",
		Context:  aggregate.Context{State: aggregate.Present, Text: text},
	})

	intel := out[strings.Index(out, "---YOUR INTEL---"):strings.Index(out, "---YOUR MISSION---")]
	assert.Contains(t, intel, text)
	assert.Contains(t, out, useIntel)
	assert.Contains(t, out, "sound like you are summarizing search results")
	assert.NotContains(t, out, ownKnowledge)
}

func TestCompose_PresentWithoutTextFallsBack(t *testing.T) {
	out := prompt.NewComposer("").Compose(prompt.Input{
		Question: "q",
		Context:  aggregate.Context{State: aggregate.Present, Text: "  "},
	})
	assert.Contains(t, out, ownKnowledge)
	assert.NotContains(t, out, useIntel)
}

func TestCompose_RequesterProfileIsWrapped(t *testing.T) {
	profile := "Likes puns. Argues about tabs versus spaces."
	out := prompt.NewComposer("").Compose(prompt.Input{
		Question:         "q",
		RequesterName:    "dana",
		RequesterProfile: profile,
	})

	start := strings.Index(out, "---PRIVATE NOTES ON THE USER (DO NOT DISCLOSE)---")
	end := strings.Index(out, "End of private notes.")
	assert.Greater(t, start, -1)
	assert.Greater(t, end, start)

	section := out[start:end]
	assert.Contains(t, section, profile)
	assert.Contains(t, section, "Never quote, paraphrase, mention or allude to these notes")
	assert.Equal(t, 1, strings.Count(out, profile))
	assert.Contains(t, out, "A user named dana has asked")
}

func TestCompose_NoProfileNoPrivateSection(t *testing.T) {
	out := prompt.NewComposer("").Compose(prompt.Input{Question: "q", RequesterProfile: " \n"})
	assert.NotContains(t, out, "PRIVATE NOTES")
}

func TestCompose_Subjects(t *testing.T) {
	out := prompt.NewComposer("").Compose(prompt.Input{
		Question: "what do you think of Sam and Alex?",
		Subjects: []prompt.Subject{
			{Name: "Sam", Profile: "Collects vintage keyboards."},
			{Name: "Alex"},
			{Name: "  "},
		},
	})

	assert.Contains(t, out, "---NOTES ON SAM---")
	assert.Contains(t, out, "Collects vintage keyboards.")
	assert.Contains(t, out, "---NOTES ON ALEX---")
	assert.Contains(t, out, "Say plainly that you do not know who Alex is.")
	assert.Contains(t, out, "Do not invent a biography")
	assert.Less(t, strings.Index(out, "---NOTES ON SAM---"), strings.Index(out, "---YOUR INTEL---"))
}

package profile

import "fmt"

// MaxWords is the soft length target given to the model.
const MaxWords = 150

// summarizePrompt is the system instruction for building a first profile.
var summarizePrompt = fmt.Sprintf(`You are a behavioral analyst. Your task is to read a user's chat history with an assistant and write a compact profile of that user.

[Instructions]:
1. Describe how the user communicates: tone, humor, recurring topics, interests and the kind of questions they ask
2. Only describe what the chat history supports; do not speculate about sensitive traits
3. Write in neutral, analytical language, in the third person
4. Write natural prose, not a list or structured data
5. Keep the profile under %d words`, MaxWords)

// updatePrompt is the system instruction for merging new observations.
var updatePrompt = fmt.Sprintf(`You are a behavioral analyst. Your task is to merge new observations about a user into their existing profile.

[Instructions]:
1. Read the current profile and the recent interaction
2. Produce ONE cohesive, rewritten profile that reflects both
3. Do NOT append the new observations to the end of the old profile; integrate them
4. Keep everything in the current profile that is still supported, and revise anything the recent interaction contradicts
5. If the recent interaction reveals nothing new, return the current profile unchanged
6. Write in neutral, analytical language, in the third person, as natural prose
7. Keep the profile under %d words`, MaxWords)

func buildSummarizeMessage(username, history string) string {
	return fmt.Sprintf(`User: %s

Chat history:
%s

Please write the profile for this user.`, username, history)
}

func buildUpdateMessage(username, oldProfile, recent string) string {
	return fmt.Sprintf(`User: %s

Current profile:
%s

Recent interaction:
%s

Please return the merged profile.`, username, oldProfile, recent)
}

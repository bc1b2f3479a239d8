package vision

import (
	"fmt"
	"strings"

	"ai-scene-narrator-service/internal/models"
)

// Operation names, used for logs and metrics labels.
const (
	OpDescribeScene = "describe_scene"
	OpPerson        = "person"
	OpAsk           = "ask"
	OpNavigation    = "navigation"
	OpContinuous    = "continuous"
)

// Part is one element of a multimodal prompt: either text or a base64 JPEG.
type Part struct {
	Text        string
	ImageBase64 string
}

// IsImage reports whether the part carries an image.
func (p Part) IsImage() bool {
	return p.ImageBase64 != ""
}

// Request is a provider-neutral prompt.
type Request struct {
	Operation string
	Parts     []Part
}

func textPart(s string) Part    { return Part{Text: s} }
func imagePart(b64 string) Part { return Part{ImageBase64: b64} }

const describeScenePrompt = "Describe the scene in the image for a visually impaired person. Be direct and objective. List key objects, people, and the general environment."

const personKnownPrompt = `Analyze the main person in the image. Compare them against the provided 'remembered people'.
- If a match is found, state their name and what they are wearing and doing. Example: '[Name] is here, wearing a blue shirt.'
- If there is no match, describe the unknown person's key features like gender, clothing, and activity.`

const personUnknownPrompt = "Describe the most prominent person in the image. Be direct. Focus on their apparent gender, clothing, and what they are doing."

const navigationPrompt = `You are a navigation assistant for a visually impaired person. Your absolute priority is safety and clarity. Provide brief, urgent-sounding instructions about the path immediately ahead.
- Mention obstacles, changes in terrain (like curbs or stairs), and potential hazards.
- Use clock-face directions (e.g., 'curb at your 1 o'clock') and approximate distances (e.g., 'about 3 steps ahead').
- If the path is clear, simply say 'Path is clear.'
Examples: 'Clear path ahead.' or 'Stairs going down, 5 steps in front of you.' or 'Pole on your right, about one step away.'`

const continuousPromptTemplate = `You are an AI assistant in continuous observation mode for a visually impaired person. Your task is to provide updates on significant changes while filtering out minor ones.

%s

**CURRENT TASK:**
Analyze the new image and compare it to the previous observations. Your response MUST be one of two things:
1. A brief, factual description of new, significant events or changes.
2. The exact word "[SILENT]" if nothing significant has changed.

**WHAT IS SIGNIFICANT (Speak up for these):**
- People or animals entering the immediate vicinity.
- Vehicles approaching, starting, or stopping nearby.
- Doors or windows opening or closing nearby.
- New objects appearing as potential obstacles in the user's path.
- Potential hazards (e.g., smoke, spills, an item dropped in front of the user).

**WHAT IS NOT SIGNIFICANT (Stay silent):**
- Minor shifts in lighting, leaves rustling, distant background activity.

**STYLE:**
Be concise and factual. Summarize multiple events. If nothing noteworthy has changed, you MUST respond with only "[SILENT]".`

// DescribeSceneRequest asks for a general scene description.
func DescribeSceneRequest(image string) Request {
	return Request{
		Operation: OpDescribeScene,
		Parts:     []Part{textPart(describeScenePrompt), imagePart(image)},
	}
}

// PersonRequest asks to identify the main person against the remembered
// people, each attached as a name followed by their reference image.
func PersonRequest(image string, people []models.RememberedPerson) Request {
	if len(people) == 0 {
		return Request{
			Operation: OpPerson,
			Parts:     []Part{textPart(personUnknownPrompt), imagePart(image)},
		}
	}

	parts := make([]Part, 0, 3+2*len(people))
	parts = append(parts,
		textPart(personKnownPrompt),
		imagePart(image),
		textPart("\n--- Remembered People for comparison ---"),
	)
	for _, p := range people {
		parts = append(parts, textPart("Name: "+p.Name), imagePart(p.ImageBase64))
	}
	return Request{Operation: OpPerson, Parts: parts}
}

// AskRequest asks a free-form question about the image.
func AskRequest(image, question string) Request {
	return Request{
		Operation: OpAsk,
		Parts: []Part{
			textPart(fmt.Sprintf("Based on the image, answer the following question factually: %q", question)),
			imagePart(image),
		},
	}
}

// NavigationRequest asks for short safety guidance about the path ahead.
func NavigationRequest(image string) Request {
	return Request{
		Operation: OpNavigation,
		Parts:     []Part{textPart(navigationPrompt), imagePart(image)},
	}
}

// ContinuousRequest asks for significant changes relative to history,
// which is newest first.
func ContinuousRequest(image string, history []string) Request {
	section := "This is the first observation."
	if len(history) > 0 {
		var b strings.Builder
		b.WriteString("**PREVIOUS OBSERVATIONS (Most recent first):**")
		for i, h := range history {
			fmt.Fprintf(&b, "\n%d. %s", i+1, h)
		}
		section = b.String()
	}
	return Request{
		Operation: OpContinuous,
		Parts:     []Part{textPart(fmt.Sprintf(continuousPromptTemplate, section)), imagePart(image)},
	}
}

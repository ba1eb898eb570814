package llm

import "strings"

const promptTemplate = `You are a machine-to-machine emotional climate scoring engine.

Evaluate the LONG-TERM emotional climate of the text.

This is not momentary emotion.
This is not expressive intensity.
This represents the stable underlying mood.

You must output five values in this exact order:

1) Valence: negative (0.0) to positive (1.0)
2) Arousal: calm (0.0) to energized (1.0)
3) Dominance: passive/weak (0.0) to powerful/controlled (1.0)
4) Complexity: minimal/simple (0.0) to rich/visually dense (1.0)
5) Coherence: chaotic/disorganized (0.0) to harmonious/ordered (1.0)

Neutral baseline for all dimensions is 0.5.

Only move away from 0.5 if the text shows a clear sustained emotional direction.

If tone is mixed, uncertain, or mild, stay near 0.5.

Weight recent text more heavily than earlier text.
If emotional tone has shifted recently, reflect the shift.

All values must remain between 0.2 and 0.8.
Never exceed this range.

Deviation magnitude should reflect sustained emotional strength:
0.52-0.58 = mild climate
0.58-0.68 = clear climate
0.68-0.8  = dominant sustained climate

Return EXACTLY five floating point numbers separated by spaces.
No words.
No explanations.
No commas.
No brackets.

Example valid output:
0.25 0.48 0.82 0.40 0.70

Text:
{{text}}

Output:
`

func buildPrompt(text string) string {
	return strings.Replace(promptTemplate, "{{text}}", text, 1)
}

package ai

const RelationshipPrompt = `Analyze the relationship between %s and %s based on this text:

"%s"

Classify their relationship as one or more of these categories:
- family (blood relatives, spouses, adopted family)
- romantic_partner (current or past romantic relationship)
- close_friend (deep friendship, bonded companions)
- ally (working together, mutual support)
- served_together (military service, combat companions)
- mentor_student (teaching/learning relationship)
- enemy (opposed, hostile)
- rival (competitive but not necessarily hostile)
- complicated (complex relationship that doesn't fit simple categories)
- member_of (organizational membership)
- leads (leadership role)

Output ONLY the category or categories that apply, comma-separated, with no explanation.
Example outputs: "close_friend,ally" or "enemy" or "complicated,family"

Categories:`

const TypePrompt = `
# Task Context
You classify pages of a fan wiki about a tabletop role-playing show into entity types.

# Background Data
Page title: %s

Infobox:
%s

Opening text:
%s

# Detailed Task Description & Rules
- Choose exactly one type from this list: %s
- Episode and transcript pages are always "episode".
- Use "unknown" when the text does not support any type.
- Confidence is a number between 0 and 1.

# Output Formatting
Return a JSON object: {"type": "<type>", "confidence": <0..1>}
`

const MatchPrompt = `
# Task Context
You decide whether a wiki page describes the entity a reader is looking for.

# Background Data
Looking for: "%s" (expected type: %s, campaign: %s)
Candidate page: "%s"

Page summary:
%s

# Detailed Task Description & Rules
- Answer is_match true only if the page is about that exact entity, not a namesake, episode or related topic.
- Confidence is a number between 0 and 1.
- Give a short reason.

# Output Formatting
Return a JSON object: {"is_match": <bool>, "confidence": <0..1>, "reason": "<text>"}
`

const ContextPrompt = `
# Task Context
You determine which campaign of the show a wiki page belongs to.

# Background Data
Page: "%s"
Campaign of interest: %d

Page summary:
%s

# Detailed Task Description & Rules
- likely_campaign is the campaign number the page is mainly about, or 0 if the text gives no indication.
- Confidence is a number between 0 and 1.
- Quote the words that gave it away as evidence.

# Output Formatting
Return a JSON object: {"likely_campaign": <int>, "confidence": <0..1>, "evidence": "<text>"}
`

package quality

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jonathan/listing-copy-guard/internal/types"
)

const (
	// hookMaxWords is the longest opening sentence that still reads as a hook
	hookMaxWords = 20
	// longFormWords is the length from which copy is expected to cite concrete figures
	longFormWords = 40
	// featureMinWords keeps the feature/benefit check off short ad fragments
	featureMinWords = 15
	// fillerThreshold is the number of filler words that triggers power-words
	fillerThreshold = 2
)

// lengthRange is the ideal character range for a channel or sub-part
type lengthRange struct {
	min int
	max int
}

// idealLengths is keyed by field-path pattern; see idealRange for precedence
var idealLengths = map[string]lengthRange{
	"twitter":                {min: 70, max: 250},
	"sms":                    {min: 40, max: 160},
	"instagram":              {min: 100, max: 1200},
	"facebook":               {min: 80, max: 800},
	"google_ads.headline":    {min: 15, max: 30},
	"google_ads.description": {min: 40, max: 90},
	"email.subject":          {min: 20, max: 60},
	"email.body":             {min: 150, max: 2000},
	"postcard.front":         {min: 20, max: 200},
	"postcard.back":          {min: 80, max: 600},
	"description":            {min: 300, max: 1000},
	"*.cta":                  {min: 8, max: 60},
	"*.headline":             {min: 10, max: 80},
}

var ctaVerbs = map[string]bool{
	"call": true, "tour": true, "schedule": true, "book": true, "visit": true,
	"contact": true, "see": true, "view": true, "text": true, "reply": true,
	"click": true, "learn": true, "apply": true, "register": true, "join": true,
	"discover": true, "explore": true, "message": true, "rsvp": true, "stop": true,
	"come": true, "request": true, "dm": true,
}

var ctaChannels = map[string]bool{
	"google_ads": true, "facebook": true, "instagram": true, "twitter": true,
	"email": true, "sms": true,
}

var cliches = []string{
	"won't last", "must see", "must-see", "nestled", "boasts", "dream home",
	"charming", "cozy", "hidden gem", "priced to sell", "turnkey", "turn-key",
	"shows like a model", "pride of ownership", "motivated seller", "a rare find",
}

var fillerWords = map[string]bool{
	"very": true, "really": true, "nice": true, "good": true, "great": true,
	"stuff": true, "things": true, "basically": true, "just": true, "amazing": true,
}

var featureWords = []string{
	"bedroom", "bed ", "bath", "sq ft", "square feet", "kitchen", "garage",
	"granite", "hardwood", "pool", "acre", "fireplace", "quartz", "hvac",
}

var benefitWords = map[string]bool{
	"you": true, "your": true, "you'll": true, "enjoy": true, "imagine": true,
	"relax": true, "entertain": true, "host": true, "unwind": true, "wake": true,
}

var casualSlang = []string{
	"awesome", "gonna", "wanna", "lol", "omg", "totally", "super cute", "cool",
	"sweet deal", "crazy good", "y'all",
}

var formalTones = map[string]bool{"luxury": true, "professional": true, "formal": true}

var socialChannels = map[string]bool{"instagram": true, "facebook": true, "twitter": true}

var paidAdChannels = map[string]bool{"google_ads": true}

var (
	doubledSpaces  = regexp.MustCompile(` {2,}`)
	repeatedBangs  = regexp.MustCompile(`!{2,}`)
	shoutingRun    = regexp.MustCompile(`\b[A-Z]{3,}(?:\s+[A-Z]{3,}){2,}\b`)
	sentenceEnd    = regexp.MustCompile(`[.!?](\s|$)`)
	digitPattern   = regexp.MustCompile(`\d`)
	wordTokenStrip = ".,!?;:\"'()[]—–-…"
)

// issue is a rule finding before it is stamped with an id and field path
type issue struct {
	category     types.QualityCategory
	priority     types.Priority
	message      string
	suggestedFix string
	original     *string
	fixed        *string
}

// check is one deterministic rule. applies reports whether the check is counted
// for the field at all.
type check struct {
	category types.QualityCategory
	applies  func(path types.FieldPath) bool
	run      func(path types.FieldPath, text string) *issue
}

func always(types.FieldPath) bool { return true }

// ruleChecks run in order on the formatting-fixed text. Formatting and cross-field
// redundancy are handled separately because they change text or need every field.
var ruleChecks = []check{
	{category: types.QualityFormatFit, applies: always, run: checkFormatFit},
	{category: types.QualityCTAStrength, applies: ctaApplies, run: checkCTA},
	{category: types.QualityCliche, applies: always, run: checkCliches},
	{category: types.QualityPowerWords, applies: always, run: checkPowerWords},
	{category: types.QualityHookStrength, applies: always, run: checkHook},
	{category: types.QualitySpecificity, applies: always, run: checkSpecificity},
	{category: types.QualityFeatureBenefit, applies: always, run: checkFeatureBenefit},
	{category: types.QualityToneConsistency, applies: hasFormalTone, run: checkTone},
	{category: types.QualityChannelOptimization, applies: channelOptimizationApplies, run: checkChannelOptimization},
}

func words(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := fields[:0]
	for _, f := range fields {
		if w := strings.Trim(f, wordTokenStrip); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// idealRange picks the range for path: an exact pattern first, then a "*.leaf"
// pattern, then the longest matching prefix pattern.
func idealRange(path types.FieldPath) (lengthRange, bool) {
	if r, ok := idealLengths[path.String()]; ok {
		return r, true
	}
	if len(path.Segments()) > 1 {
		if r, ok := idealLengths["*"+types.PathSeparator+path.Leaf()]; ok {
			return r, true
		}
	}

	best, bestLen, found := lengthRange{}, -1, false
	for pattern, r := range idealLengths {
		if strings.HasPrefix(pattern, "*") || !path.Matches(pattern) {
			continue
		}
		if n := len(strings.Split(pattern, types.PathSeparator)); n > bestLen {
			best, bestLen, found = r, n, true
		}
	}
	return best, found
}

func checkFormatFit(path types.FieldPath, text string) *issue {
	length := utf8.RuneCountInString(strings.TrimSpace(text))
	if length == 0 {
		return &issue{
			category:     types.QualityFormatFit,
			priority:     types.PriorityRequired,
			message:      "Field is empty",
			suggestedFix: "Provide copy for this placement or remove the placement",
		}
	}
	r, ok := idealRange(path)
	if !ok {
		return nil
	}
	switch {
	case length < r.min:
		return &issue{
			category:     types.QualityFormatFit,
			priority:     types.PriorityRecommended,
			message:      fmt.Sprintf("Copy is %d characters; %s performs best from %d to %d", length, path, r.min, r.max),
			suggestedFix: "Add a concrete detail about the property",
		}
	case length > r.max:
		return &issue{
			category:     types.QualityFormatFit,
			priority:     types.PriorityRecommended,
			message:      fmt.Sprintf("Copy is %d characters; %s performs best from %d to %d", length, path, r.min, r.max),
			suggestedFix: "Tighten the copy to its strongest points",
		}
	}
	return nil
}

func ctaApplies(path types.FieldPath) bool {
	leaf := path.Leaf()
	if leaf == "cta" {
		return true
	}
	if leaf == "subject" || leaf == "headline" {
		return false
	}
	return ctaChannels[path.Channel()]
}

func hasCTA(text string) bool {
	for _, w := range words(text) {
		if ctaVerbs[w] {
			return true
		}
	}
	return false
}

func checkCTA(path types.FieldPath, text string) *issue {
	if hasCTA(text) {
		return nil
	}
	priority := types.PriorityRecommended
	if path.Leaf() == "cta" {
		priority = types.PriorityRequired
	}
	return &issue{
		category:     types.QualityCTAStrength,
		priority:     priority,
		message:      "No clear call to action",
		suggestedFix: "Tell the reader what to do next, e.g. \"Schedule a private tour today\"",
	}
}

func checkCliches(_ types.FieldPath, text string) *issue {
	lower := strings.ToLower(text)
	var found []string
	for _, c := range cliches {
		if strings.Contains(lower, c) {
			found = append(found, c)
		}
	}
	if len(found) == 0 {
		return nil
	}
	return &issue{
		category:     types.QualityCliche,
		priority:     types.PriorityRecommended,
		message:      fmt.Sprintf("Overused listing phrases: %s", strings.Join(found, ", ")),
		suggestedFix: "Replace each phrase with a specific detail buyers cannot find elsewhere",
	}
}

func checkPowerWords(_ types.FieldPath, text string) *issue {
	var weak []string
	for _, w := range words(text) {
		if fillerWords[w] {
			weak = append(weak, w)
		}
	}
	if len(weak) < fillerThreshold {
		return nil
	}
	return &issue{
		category:     types.QualityPowerWords,
		priority:     types.PriorityRecommended,
		message:      fmt.Sprintf("Weak filler words (%s)", strings.Join(weak, ", ")),
		suggestedFix: "Swap filler for vivid, specific words",
	}
}

// fixFormatting collapses doubled spaces and repeated exclamation marks. The result
// is never longer than the input.
func fixFormatting(text string) string {
	fixed := doubledSpaces.ReplaceAllString(text, " ")
	return repeatedBangs.ReplaceAllString(fixed, "!")
}

const messageSpacing = "Doubled spaces or repeated exclamation marks"

// checkFormatting reports formatting problems as suggestions. Doubled spaces and
// repeated exclamation marks are normally gone by now because Polish runs first.
func checkFormatting(text string) []issue {
	var out []issue
	if fixFormatting(text) != text {
		out = append(out, issue{
			category:     types.QualityFormatting,
			priority:     types.PriorityRecommended,
			message:      messageSpacing,
			suggestedFix: "Collapse them to a single space or mark",
		})
	}
	if shoutingRun.MatchString(text) {
		out = append(out, issue{
			category:     types.QualityFormatting,
			priority:     types.PriorityRecommended,
			message:      "Several consecutive words in capitals read as shouting",
			suggestedFix: "Use sentence case and let one word carry the emphasis",
		})
	}
	return out
}

func firstSentence(text string) string {
	trimmed := strings.TrimSpace(text)
	if loc := sentenceEnd.FindStringIndex(trimmed); loc != nil {
		return trimmed[:loc[0]+1]
	}
	return trimmed
}

func checkHook(_ types.FieldPath, text string) *issue {
	n := len(words(firstSentence(text)))
	if n <= hookMaxWords {
		return nil
	}
	return &issue{
		category:     types.QualityHookStrength,
		priority:     types.PriorityRecommended,
		message:      fmt.Sprintf("Opening sentence runs %d words", n),
		suggestedFix: fmt.Sprintf("Open with a line of %d words or fewer", hookMaxWords),
	}
}

func checkSpecificity(_ types.FieldPath, text string) *issue {
	if len(words(text)) < longFormWords || digitPattern.MatchString(text) {
		return nil
	}
	return &issue{
		category:     types.QualitySpecificity,
		priority:     types.PriorityRecommended,
		message:      "Long-form copy without a single concrete figure",
		suggestedFix: "Cite square footage, lot size, year updated or commute time",
	}
}

func checkFeatureBenefit(_ types.FieldPath, text string) *issue {
	ws := words(text)
	if len(ws) < featureMinWords {
		return nil
	}
	lower := strings.ToLower(text)
	hasFeature := false
	for _, f := range featureWords {
		if strings.Contains(lower, f) {
			hasFeature = true
			break
		}
	}
	if !hasFeature {
		return nil
	}
	for _, w := range ws {
		if benefitWords[w] {
			return nil
		}
	}
	return &issue{
		category:     types.QualityFeatureBenefit,
		priority:     types.PriorityRecommended,
		message:      "Lists features without saying what they mean for the buyer",
		suggestedFix: "Follow a feature with its benefit, e.g. \"a chef's kitchen where you can host the whole family\"",
	}
}

func hasFormalTone(path types.FieldPath) bool {
	for _, seg := range path.Segments() {
		if formalTones[seg] {
			return true
		}
	}
	return false
}

func checkTone(_ types.FieldPath, text string) *issue {
	lower := " " + strings.ToLower(text) + " "
	var found []string
	for _, s := range casualSlang {
		idx := strings.Index(lower, s)
		if idx < 0 {
			continue
		}
		before, _ := utf8.DecodeLastRuneInString(lower[:idx])
		after, _ := utf8.DecodeRuneInString(lower[idx+len(s):])
		if unicode.IsLetter(before) || unicode.IsLetter(after) {
			continue
		}
		found = append(found, s)
	}
	if len(found) == 0 {
		return nil
	}
	return &issue{
		category:     types.QualityToneConsistency,
		priority:     types.PriorityRecommended,
		message:      fmt.Sprintf("Casual slang in a formal variant: %s", strings.Join(found, ", ")),
		suggestedFix: "Keep the register of the variant throughout",
	}
}

func channelOptimizationApplies(path types.FieldPath) bool {
	channel := path.Channel()
	return socialChannels[channel] || paidAdChannels[channel]
}

func checkChannelOptimization(path types.FieldPath, text string) *issue {
	hasHashtag := strings.Contains(text, "#")
	channel := path.Channel()
	switch {
	case paidAdChannels[channel] && hasHashtag:
		return &issue{
			category:     types.QualityChannelOptimization,
			priority:     types.PriorityRequired,
			message:      "Hashtags are not allowed in paid search ads",
			suggestedFix: "Remove the hashtags",
		}
	case socialChannels[channel] && !hasHashtag:
		return &issue{
			category:     types.QualityChannelOptimization,
			priority:     types.PriorityRecommended,
			message:      "No hashtags on a social post",
			suggestedFix: "Add one to three local hashtags",
		}
	}
	return nil
}

// openingKey normalises a field's first sentence for redundancy comparison
func openingKey(text string) string {
	return strings.Join(words(firstSentence(text)), " ")
}

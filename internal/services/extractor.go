package services

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gradyfinch/tcg-sniper/internal/models"
)

// Maximum allowed title length to prevent regex DoS
const maxTitleLength = 2000

var (
	slashNumberRegex = regexp.MustCompile(`(?:^|[^\d/])(\d{1,3})\s*/\s*(\d{1,3})(?:[^\d/]|$)`)
	hashNumberRegex  = regexp.MustCompile(`#\s?0*(\d{1,4})\b`)
	promoNumberRegex = regexp.MustCompile(`\b(SVP|SWSH|SM|XY|BW|DP|HGSS)\s?(\d{2,3})\b`)
	gradeRegex       = regexp.MustCompile(`\b(PSA|CGC|BGS|SGC|ACE)\s*(10|[1-9](?:\.5)?)\b`)
	bareNumberRegex  = regexp.MustCompile(`(?:^|[^\d/.])(\d{1,3})(?:[^\d/.]|$)`)
	cardTypeRegex    = regexp.MustCompile(`^(VMAX|VSTAR|GX|EX|ex|V)\b`)
)

// promoSetNames maps promo-code prefixes to their fixed expansion names.
// A promo-prefixed number resolves both the number and the set.
var promoSetNames = map[string]string{
	"SVP":  "SV Black Star Promos",
	"SWSH": "SWSH Black Star Promos",
	"SM":   "SM Black Star Promos",
	"XY":   "XY Black Star Promos",
	"BW":   "BW Black Star Promos",
	"DP":   "DP Black Star Promos",
	"HGSS": "HGSS Black Star Promos",
}

// knownSet is an expansion name recognized in listing titles.
// WotC-era sets additionally permit standalone card numbers adjacent to
// the set name; a bare number elsewhere is ambiguous and ignored.
type knownSet struct {
	Name string
	WotC bool
}

// knownSets is checked longest-name-first so "Base Set 2" wins over
// "Base Set". Keep it sorted at init.
var knownSets = func() []knownSet {
	sets := []knownSet{
		// WotC era (1999-2003)
		{"Legendary Collection", true},
		{"Gym Challenge", true},
		{"Neo Revelation", true},
		{"Neo Discovery", true},
		{"Neo Genesis", true},
		{"Neo Destiny", true},
		{"Team Rocket", true},
		{"Gym Heroes", true},
		{"Base Set 2", true},
		{"Expedition", true},
		{"Aquapolis", true},
		{"Base Set", true},
		{"Skyridge", true},
		{"Jungle", true},
		{"Fossil", true},
		// Modern eras
		{"Prismatic Evolutions", false},
		{"Twilight Masquerade", false},
		{"Surging Sparks", false},
		{"Obsidian Flames", false},
		{"Paldea Evolved", false},
		{"Journey Together", false},
		{"Temporal Forces", false},
		{"Stellar Crown", false},
		{"Paldean Fates", false},
		{"Paradox Rift", false},
		{"Scarlet & Violet", false},
		{"Brilliant Stars", false},
		{"Astral Radiance", false},
		{"Evolving Skies", false},
		{"Silver Tempest", false},
		{"Fusion Strike", false},
		{"Chilling Reign", false},
		{"Battle Styles", false},
		{"Crown Zenith", false},
		{"Shining Fates", false},
		{"Vivid Voltage", false},
		{"Darkness Ablaze", false},
		{"Lost Origin", false},
		{"Rebel Clash", false},
		{"Celebrations", false},
		{"Hidden Fates", false},
		{"Cosmic Eclipse", false},
		{"Unified Minds", false},
		{"Unbroken Bonds", false},
		{"Lost Thunder", false},
		{"Celestial Storm", false},
		{"Burning Shadows", false},
		{"Guardians Rising", false},
		{"Ultra Prism", false},
		{"Team Up", false},
		{"Evolutions", false},
		{"Steam Siege", false},
		{"Phantom Forces", false},
		{"Primal Clash", false},
		{"Roaring Skies", false},
		{"Flashfire", false},
		{"Plasma Storm", false},
		{"Plasma Freeze", false},
		{"Plasma Blast", false},
		{"Boundaries Crossed", false},
		{"Next Destinies", false},
		{"Noble Victories", false},
		{"Stormfront", false},
		{"Secret Wonders", false},
		{"Majestic Dawn", false},
		{"Mysterious Treasures", false},
		{"Diamond & Pearl", false},
		{"Triumphant", false},
		{"Undaunted", false},
		{"Unleashed", false},
		{"Call of Legends", false},
		{"151", false},
	}
	sort.Slice(sets, func(i, j int) bool {
		return len(sets[i].Name) > len(sets[j].Name)
	})
	return sets
}()

// junkRule rejects whole listing classes before any catalog work.
type junkRule struct {
	re     *regexp.Regexp
	reason models.RejectReason
}

var junkRules = []junkRule{
	{regexp.MustCompile(`\b(job ?lot|lot of|card lot|lot bundle|\d+\s*card lot|bulk)\b`), models.RejectBulkLot},
	{regexp.MustCompile(`\blot\b.*\bcards\b|\bcards\b.*\blot\b`), models.RejectBulkLot},
	{regexp.MustCompile(`\bbundle\b`), models.RejectBulkLot},
	{regexp.MustCompile(`\b(mystery|repack|chase pack|random card)\b`), models.RejectMysteryPack},
	{regexp.MustCompile(`\b(custom|proxy|orica|fan ?art|fan ?made|replica|reprint)\b`), models.RejectCustomProxy},
	{regexp.MustCompile(`\bbinder\b`), models.RejectBinderCollection},
	{regexp.MustCompile(`\b(?:card|whole|entire|my|huge|massive)\s+collection\b`), models.RejectBinderCollection},
}

// speciesNames is the fallback card-name list, sorted by length
// (longest first) to prevent partial matches like "mew" inside "mewtwo".
var speciesNames = func() []string {
	names := []string{
		"bulbasaur", "ivysaur", "venusaur", "charmander", "charmeleon", "charizard",
		"squirtle", "wartortle", "blastoise", "pikachu", "raichu", "clefairy",
		"ninetales", "machamp", "alakazam", "gengar", "gyarados", "lapras",
		"vaporeon", "jolteon", "flareon", "aerodactyl", "snorlax", "articuno",
		"zapdos", "moltres", "dragonite", "mewtwo", "mew", "espeon", "umbreon",
		"lugia", "ho-oh", "celebi", "tyranitar", "scizor", "blissey",
		"rayquaza", "gardevoir", "metagross", "salamence", "latias", "latios",
		"kyogre", "groudon", "jirachi", "deoxys", "lucario", "garchomp",
		"dialga", "palkia", "giratina", "darkrai", "arceus", "shaymin",
		"reshiram", "zekrom", "greninja", "sylveon", "xerneas", "yveltal",
		"solgaleo", "lunala", "necrozma", "zacian", "zamazenta", "eternatus",
		"dragapult", "urshifu", "calyrex", "miraidon", "koraidon", "gholdengo",
		"iron valiant", "roaring moon", "flutter mane", "eevee", "leafeon",
		"glaceon", "magikarp", "ditto", "togepi",
	}
	sort.Slice(names, func(i, j int) bool {
		return len(names[i]) > len(names[j])
	})
	return names
}()

// TitleExtractor turns noisy listing titles into structured card signals.
type TitleExtractor struct {
	species []string
}

// NewTitleExtractor creates an extractor with the built-in species list.
func NewTitleExtractor() *TitleExtractor {
	return &TitleExtractor{species: speciesNames}
}

// NewTitleExtractorWithNames creates an extractor using names from the
// catalog, sorted longest first (same rule as the fallback list).
func NewTitleExtractorWithNames(names []string) *TitleExtractor {
	if len(names) == 0 {
		return NewTitleExtractor()
	}
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Slice(sorted, func(i, j int) bool {
		return len(sorted[i]) > len(sorted[j])
	})
	return &TitleExtractor{species: sorted}
}

// deobfuscate maps symbol substitutions back to letters so junk sellers
// can't dodge the patterns with "CU$TOM" or "L0T".
func deobfuscate(s string) string {
	r := strings.NewReplacer(
		"$", "s",
		"@", "a",
		"!", "i",
		"0", "o",
		"1", "i",
		"3", "e",
		"5", "s",
		"7", "t",
	)
	return r.Replace(s)
}

// detectJunk returns the reject reason for junk listings, or RejectNone.
// It scans both the raw lowercased title and a deobfuscated copy.
func detectJunk(title string) models.RejectReason {
	lower := strings.ToLower(title)
	candidates := []string{lower, deobfuscate(lower)}
	for _, text := range candidates {
		for _, rule := range junkRules {
			if rule.re.MatchString(text) {
				return rule.reason
			}
		}
	}
	return models.RejectNone
}

// Extract parses a listing title (and optional enriched detail) into
// structured signals, or rejects the listing with a reason.
// Extraction never fails for malformed input; a low-confidence result is
// a normal output.
func (e *TitleExtractor) Extract(title string, detail *models.ListingDetail) (*models.ExtractedSignals, models.RejectReason) {
	if len(title) > maxTitleLength {
		title = title[:maxTitleLength]
	}

	// Junk rejection short-circuits all later stages.
	if reason := detectJunk(title); reason != models.RejectNone {
		return nil, reason
	}
	if detail != nil && detail.Description != "" {
		desc := detail.Description
		if len(desc) > maxTitleLength {
			desc = desc[:maxTitleLength]
		}
		if reason := detectJunk(desc); reason != models.RejectNone {
			return nil, reason
		}
	}

	sig := &models.ExtractedSignals{Language: models.LanguageEnglish}
	upper := strings.ToUpper(title)

	e.extractNumber(sig, title, upper)
	extractGrading(sig, upper)
	extractVariants(sig, upper)
	if sig.ExpansionGuess == "" {
		detectExpansion(sig, upper)
	}
	e.extractName(sig, title)
	sig.Language = detectTitleLanguage(title, upper)

	// Condition resolution; graded listings never receive an ungraded
	// condition.
	if sig.Grading == nil {
		resolved := ResolveCondition(title, detail)
		sig.Condition = &resolved
	} else if blocked, src := scanBlockedKeywords(title); blocked {
		// A graded-but-damaged slab is still discarded.
		sig.Condition = &models.ResolvedCondition{Condition: models.ConditionHP, Blocked: true, Source: src}
	}

	scoreSignals(sig)
	return sig, models.RejectNone
}

// extractNumber applies the number-extraction priority order:
// slash-delimited, hash-prefixed, promo-prefixed, then WotC-adjacent
// standalone numbers.
func (e *TitleExtractor) extractNumber(sig *models.ExtractedSignals, title, upper string) {
	// Slash form is the most reliable: it also yields the printed
	// denominator, kept verbatim for consistency checks downstream.
	if m := slashNumberRegex.FindStringSubmatch(title); len(m) >= 3 {
		sig.CardNumber = trimLeadingZeros(m[1])
		sig.Denominator = m[2]
		return
	}

	if m := hashNumberRegex.FindStringSubmatch(title); len(m) >= 2 {
		sig.CardNumber = m[1]
		return
	}

	// Promo-code prefixes resolve both the number and a fixed set name.
	// The digits are kept verbatim: SVP052 is card "052".
	if m := promoNumberRegex.FindStringSubmatch(upper); len(m) >= 3 {
		if setName, ok := promoSetNames[m[1]]; ok {
			sig.CardNumber = m[2]
			sig.ExpansionGuess = setName
			sig.Variants.Promo = true
			return
		}
	}

	// A standalone number is only meaningful next to a WotC-era set
	// name; anywhere else it is ambiguous and must not be extracted.
	for _, set := range knownSets {
		idx := strings.Index(upper, strings.ToUpper(set.Name))
		if idx < 0 {
			continue
		}
		if sig.ExpansionGuess == "" {
			sig.ExpansionGuess = set.Name
		}
		if !set.WotC {
			continue
		}
		lo := idx - 12
		if lo < 0 {
			lo = 0
		}
		hi := idx + len(set.Name) + 12
		if hi > len(upper) {
			hi = len(upper)
		}
		if m := bareNumberRegex.FindStringSubmatch(upper[lo:hi]); len(m) >= 2 {
			sig.CardNumber = trimLeadingZeros(m[1])
			return
		}
	}
	if sig.CardNumber == "" {
		sig.Warnings = append(sig.Warnings, "no card number found")
	}
}

// extractGrading detects a grading company token followed by a numeric
// grade, plus an optional modifier like "BLACK LABEL".
func extractGrading(sig *models.ExtractedSignals, upper string) {
	m := gradeRegex.FindStringSubmatch(upper)
	if len(m) < 3 {
		return
	}
	company := models.ParseGradingCompany(m[1])
	if company == "" {
		return
	}
	grade := parseGrade(m[2])
	if grade <= 0 {
		return
	}
	info := &models.GradingInfo{Company: company, Grade: grade}
	for _, modifier := range []string{"BLACK LABEL", "PRISTINE", "GEM MINT", "PERFECT"} {
		if strings.Contains(upper, modifier) {
			info.Modifier = modifier
			break
		}
	}
	sig.Grading = info
}

// extractVariants sets variant flags independently; a title may carry
// several at once. Edition markers may co-occur with any of them.
func extractVariants(sig *models.ExtractedSignals, upper string) {
	if strings.Contains(upper, "REVERSE HOLO") || strings.Contains(upper, "REV HOLO") {
		sig.Variants.ReverseHolo = true
	}
	if strings.Contains(upper, "HOLO") && !sig.Variants.ReverseHolo {
		sig.Variants.Holo = true
	}
	if strings.Contains(upper, "FULL ART") {
		sig.Variants.FullArt = true
	}
	if strings.Contains(upper, "ALT ART") || strings.Contains(upper, "ALTERNATE ART") {
		sig.Variants.AltArt = true
	}
	if strings.Contains(upper, "RAINBOW") {
		sig.Variants.Rainbow = true
	}
	if strings.Contains(upper, "SECRET") {
		sig.Variants.Secret = true
	}
	if strings.Contains(upper, "PROMO") {
		sig.Variants.Promo = true
	}
	if strings.Contains(upper, "1ST EDITION") || strings.Contains(upper, "1ST ED") ||
		strings.Contains(upper, "FIRST EDITION") {
		sig.FirstEdition = true
	}
	if strings.Contains(upper, "SHADOWLESS") {
		sig.Shadowless = true
	}
}

// detectExpansion fills ExpansionGuess from any known set name.
func detectExpansion(sig *models.ExtractedSignals, upper string) {
	for _, set := range knownSets {
		if strings.Contains(upper, strings.ToUpper(set.Name)) {
			sig.ExpansionGuess = set.Name
			return
		}
	}
}

// extractName finds a known species name in the title and folds a card
// type suffix (EX, ex, GX, V, VMAX, VSTAR) into it when the suffix
// immediately follows the name. Case matters for EX/ex: uppercase EX is
// the classic era, lowercase ex is modern; incidental text like
// "EX Era" is not a suffix.
func (e *TitleExtractor) extractName(sig *models.ExtractedSignals, title string) {
	lower := strings.ToLower(title)
	for _, species := range e.species {
		idx := strings.Index(lower, species)
		if idx < 0 {
			continue
		}
		// Reject mid-word hits ("mew" inside "smews").
		if idx > 0 {
			prev := rune(lower[idx-1])
			if unicode.IsLetter(prev) {
				continue
			}
		}
		end := idx + len(species)
		if end < len(lower) && unicode.IsLetter(rune(lower[end])) {
			continue
		}

		name := strings.ToUpper(string(species[0])) + species[1:]
		// end is an offset into lower; lowercasing can change a rune's
		// byte length, so it cannot be used to slice title directly.
		rest := strings.TrimLeft(title[titleOffset(title, end):], " ")
		if m := cardTypeRegex.FindStringSubmatch(rest); len(m) >= 2 {
			if suffix, ok := cardTypeSuffix(m[1], rest[len(m[1]):]); ok {
				name += " " + suffix
			}
		}
		sig.CardName = name
		return
	}
	if sig.CardName == "" {
		sig.Warnings = append(sig.Warnings, "no recognized card name")
	}
}

// titleOffset maps a byte offset in strings.ToLower(title) back to the
// corresponding offset in title by walking both rune by rune.
func titleOffset(title string, lowerOff int) int {
	lo, to := 0, 0
	for lo < lowerOff && to < len(title) {
		r, size := utf8.DecodeRuneInString(title[to:])
		lo += utf8.RuneLen(unicode.ToLower(r))
		to += size
	}
	return to
}

// cardTypeSuffix validates a detected card type token. The token is
// only a suffix when not followed by text like "Era" or "Series".
func cardTypeSuffix(token, rest string) (string, bool) {
	next := strings.Fields(rest)
	if len(next) > 0 {
		switch strings.ToUpper(next[0]) {
		case "ERA", "SERIES":
			return "", false
		}
	}
	switch token {
	case "VMAX", "VSTAR", "GX", "V":
		return token, true
	case "EX", "ex":
		// Preserve case: EX is classic era, ex is modern.
		return token, true
	}
	return "", false
}

var (
	germanMarkerRegex = regexp.MustCompile(`\b\d{2,3}\s*KP\b|\bKP\s*\d{2,3}\b`)
	frenchMarkerRegex = regexp.MustCompile(`\b\d{2,3}\s*PV\b|\bPV\s*\d{2,3}\b`)
)

// detectTitleLanguage defaults to English; explicit language words and
// era-specific HP markers override it.
func detectTitleLanguage(title, upper string) models.CardLanguage {
	for _, r := range title {
		if (r >= 0x3040 && r <= 0x30FF) || (r >= 0x4E00 && r <= 0x9FAF) {
			return models.LanguageJapanese
		}
	}
	switch {
	case strings.Contains(upper, "JAPANESE"):
		return models.LanguageJapanese
	case strings.Contains(upper, "GERMAN") || strings.Contains(upper, "DEUTSCH") || germanMarkerRegex.MatchString(upper):
		return models.LanguageGerman
	case strings.Contains(upper, "FRENCH") || frenchMarkerRegex.MatchString(upper):
		return models.LanguageFrench
	case strings.Contains(upper, "ITALIAN"):
		return models.LanguageItalian
	}
	return models.LanguageEnglish
}

// scoreSignals computes the 0-100 extraction score from the union of
// found signals. The score is independent of catalog matching.
func scoreSignals(sig *models.ExtractedSignals) {
	score := 0
	if sig.CardName != "" {
		score += 30
	}
	if sig.CardNumber != "" {
		score += 20
	}
	if sig.Denominator != "" {
		score += 10
	}
	if sig.ExpansionGuess != "" {
		score += 15
	}
	if sig.Grading != nil {
		score += 15
	}
	if sig.Variants.Any() || sig.FirstEdition || sig.Shadowless {
		score += 5
	}
	if sig.Condition != nil && sig.Condition.Source != models.SourceDefault {
		score += 5
	}
	if score > 100 {
		score = 100
	}
	sig.Score = score
	switch {
	case score >= 70:
		sig.Tier = models.ScoreHigh
	case score >= 40:
		sig.Tier = models.ScoreMedium
	default:
		sig.Tier = models.ScoreLow
	}
}

// trimLeadingZeros normalizes "025" to "25" but keeps a lone zero.
func trimLeadingZeros(s string) string {
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

// parseGrade parses grade tokens like "10" and "9.5".
func parseGrade(s string) float64 {
	switch {
	case s == "10":
		return 10
	case strings.HasSuffix(s, ".5"):
		whole := float64(s[0] - '0')
		return whole + 0.5
	case len(s) == 1 && s[0] >= '1' && s[0] <= '9':
		return float64(s[0] - '0')
	}
	return 0
}

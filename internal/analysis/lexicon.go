package analysis

// Sentiment constants follow the VADER model.
const (
	boosterIncrement   = 0.293
	negationScalar     = -0.74
	exclaimIncrement   = 0.292
	normalizationAlpha = 15.0
	negationWindow     = 3
	butBefore          = 0.5
	butAfter           = 1.5
)

// valenceLexicon maps lowercased words to a valence on the -4..4 scale. It is a
// subset of the VADER lexicon covering the vocabulary of personal memories.
var valenceLexicon = map[string]float64{
	// positive
	"love": 3.2, "loved": 2.9, "loves": 2.7, "loving": 2.9, "lovely": 2.8,
	"happy": 2.7, "happiness": 2.6, "happier": 2.4, "joy": 2.8, "joyful": 2.9,
	"smile": 1.5, "smiled": 2.5, "smiles": 1.5, "smiling": 2.1,
	"grateful": 2.0, "gratitude": 2.3, "thank": 1.5, "thanks": 1.9, "thankful": 2.7,
	"blessed": 2.9, "blessing": 2.2, "proud": 2.1, "pride": 1.4,
	"celebrate": 2.7, "celebrated": 2.7, "celebration": 2.5,
	"good": 1.9, "great": 3.1, "best": 3.2, "better": 1.9, "wonderful": 2.7,
	"beautiful": 2.9, "nice": 1.8, "fun": 2.3, "laugh": 2.6, "laughed": 2.0,
	"laughter": 2.2, "hope": 1.9, "hopeful": 2.3, "kind": 2.4, "kindness": 2.4,
	"warm": 0.9, "peace": 2.5, "peaceful": 2.2, "calm": 1.3, "safe": 1.9,
	"dear": 1.6, "beloved": 2.3, "cherish": 2.2, "cherished": 2.3,
	"treasure": 1.2, "treasured": 2.6, "glad": 2.0, "delight": 2.9,
	"excited": 1.4, "amazing": 2.8, "awesome": 3.1, "fantastic": 2.6,
	"perfect": 2.7, "sweet": 2.0, "gentle": 1.6, "brave": 2.4, "strong": 2.3,
	"appreciate": 1.7, "appreciated": 2.3, "enjoy": 2.2, "enjoyed": 2.3,
	"comfort": 1.5, "friend": 2.2, "friends": 2.1, "together": 1.0,
	"success": 2.7, "win": 2.8, "won": 2.7, "wisdom": 2.4, "wise": 2.1,
	"heal": 2.0, "healed": 1.4, "support": 1.7, "care": 2.2, "caring": 2.2,
	"honest": 2.3, "honor": 2.2, "forgive": 1.1, "forgiven": 1.6, "free": 2.3,

	// negative
	"sad": -2.1, "sadness": -1.9, "sadly": -1.8, "loss": -1.3, "lose": -1.6,
	"lost": -1.3, "miss": -0.6, "missed": -1.2, "missing": -1.2,
	"cry": -2.1, "cried": -1.6, "crying": -2.1, "tears": -0.9,
	"grief": -2.2, "grieve": -1.6, "grieving": -2.3, "sorry": -0.3,
	"alone": -1.0, "lonely": -2.0, "loneliness": -1.8,
	"angry": -2.3, "anger": -2.7, "mad": -2.2, "furious": -2.7,
	"upset": -1.6, "annoyed": -1.6, "annoying": -1.8,
	"fear": -2.2, "feared": -2.2, "fearful": -2.2, "worry": -1.9,
	"worried": -1.2, "worries": -1.8, "anxious": -1.0, "anxiety": -0.7,
	"afraid": -2.2, "scared": -2.2, "scary": -2.2, "terrified": -3.0,
	"hate": -2.7, "hated": -3.2, "bad": -2.5, "worse": -2.1, "worst": -3.1,
	"terrible": -2.1, "awful": -2.0, "horrible": -2.5,
	"pain": -2.3, "painful": -1.9, "hurt": -2.4, "hurts": -2.1,
	"die": -2.9, "died": -2.6, "death": -2.9, "dead": -3.3, "dying": -2.9,
	"sick": -2.3, "ill": -1.9, "illness": -1.6, "broken": -2.1, "regret": -1.8,
	"regrets": -1.5, "sorrow": -2.4, "tragedy": -3.4, "tragic": -3.1,
	"fail": -2.5, "failed": -2.3, "failure": -2.3, "war": -2.9,
	"hard": -0.4, "difficult": -1.5, "struggle": -1.3, "struggled": -1.4,
	"cold": -0.3, "dark": -1.4, "goodbye": -0.4, "funeral": -1.0,
	"shame": -2.1, "guilt": -1.1, "guilty": -1.8, "wrong": -2.1,
}

var negations = map[string]bool{
	"not": true, "no": true, "never": true, "none": true, "nobody": true,
	"nothing": true, "neither": true, "nor": true, "nowhere": true,
	"cannot": true, "without": true, "rarely": true, "seldom": true,
	"despite": true,
}

// boosters intensify the following word; dampeners soften it.
var boosters = map[string]bool{
	"very": true, "really": true, "extremely": true, "so": true, "absolutely": true,
	"completely": true, "deeply": true, "incredibly": true, "truly": true,
	"totally": true, "most": true, "more": true, "especially": true,
	"hugely": true, "utterly": true, "entirely": true, "quite": true,
	"remarkably": true, "exceptionally": true, "immensely": true,
}

var dampeners = map[string]bool{
	"slightly": true, "somewhat": true, "barely": true, "hardly": true,
	"little": true, "less": true, "marginally": true, "occasionally": true,
	"partly": true, "scarcely": true, "almost": true, "kinda": true,
}

// emotionKeywords are the keyword buckets per emotion category. A keyword with
// spaces matches the corresponding token sequence.
var emotionKeywords = map[string][]string{
	"joy":       {"happy", "joy", "smile", "grateful", "blessed", "proud", "celebrate"},
	"sorrow":    {"sad", "loss", "miss", "cry", "grief", "sorry", "alone"},
	"advice":    {"remember", "always", "should", "lesson", "advice", "teach"},
	"legacy":    {"legacy", "remember me", "after i'm gone", "future", "values", "family"},
	"gratitude": {"thank", "thanks", "grateful", "appreciate"},
	"anger":     {"angry", "mad", "furious", "upset", "annoyed"},
	"fear":      {"fear", "worry", "anxious", "afraid", "scared"},
	"love":      {"love", "dear", "beloved", "daughter", "son", "wife", "husband"},
}

var stopwords = map[string]bool{}

func init() {
	for _, w := range []string{
		"a", "about", "above", "after", "again", "against", "all", "also", "am", "an",
		"and", "any", "are", "as", "at", "be", "because", "been", "before", "being",
		"below", "between", "both", "but", "by", "can", "could", "did", "do", "does",
		"doing", "down", "during", "each", "even", "ever", "every", "few", "for", "from",
		"further", "get", "got", "had", "has", "have", "having", "he", "her", "here",
		"hers", "herself", "him", "himself", "his", "how", "i", "i'm", "i've", "i'd",
		"i'll", "if", "in", "into", "is", "it", "it's", "its", "itself", "just", "let",
		"like", "made", "make", "many", "me", "might", "more", "most", "much", "must",
		"my", "myself", "no", "nor", "not", "now", "of", "off", "on", "once", "one",
		"only", "or", "other", "our", "ours", "ourselves", "out", "over", "own", "same",
		"she", "should", "so", "some", "still", "such", "than", "that", "that's", "the",
		"their", "theirs", "them", "themselves", "then", "there", "these", "they",
		"this", "those", "through", "to", "too", "under", "until", "up", "upon", "us",
		"very", "was", "we", "were", "what", "when", "where", "which", "while", "who",
		"whom", "why", "will", "with", "would", "you", "your", "yours", "yourself",
		"don't", "didn't", "can't", "won't", "wasn't", "isn't", "aren't", "couldn't",
		"wouldn't", "shouldn't", "we're", "we've", "you're", "they're", "he's", "she's",
		"there's", "went", "go", "going", "came", "come", "say", "said", "day",
	} {
		stopwords[w] = true
	}
}

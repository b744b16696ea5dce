package langhint

func set(ws ...string) map[string]bool {
	m := make(map[string]bool, len(ws))
	for _, w := range ws {
		m[w] = true
	}
	return m
}

// englishWords are frequent function words plus the vocabulary comments lean on
var englishWords = set(
	"the", "a", "an", "and", "or", "but", "if", "of", "to", "in", "on", "at", "for", "with",
	"from", "by", "about", "as", "is", "are", "was", "were", "be", "been", "am", "it", "its",
	"this", "that", "these", "those", "i", "you", "he", "she", "we", "they", "me", "my", "your",
	"our", "their", "his", "her", "them", "us", "do", "does", "did", "dont", "doesnt", "didnt",
	"not", "no", "yes", "so", "very", "too", "just", "really", "can", "cant", "will", "wont",
	"would", "should", "could", "have", "has", "had", "what", "when", "where", "why", "how",
	"who", "which", "there", "here", "all", "more", "most", "some", "any", "one", "thing",
	"im", "ive", "youre", "thats", "its", "isnt", "wasnt", "arent", "lol", "omg", "pls", "please",
	"thanks", "thank", "love", "like", "great", "good", "nice", "awesome", "amazing", "best",
	"bad", "worst", "cool", "beautiful", "wow", "video", "videos", "post", "content", "keep",
	"up", "work", "make", "more", "much", "ever", "never", "always", "again", "first", "new",
	"hate", "boring", "terrible", "funny", "wait", "watching", "watch", "need", "want", "got",
	"get", "see", "know", "think", "people", "time", "day", "today", "still", "than", "then",
	"man", "guys", "bro", "sir", "mate", "well", "done", "go", "going", "help", "helpful",
	"recipe", "music", "song", "channel", "subscribe", "subscribed", "inspiring", "useful",
)

// foreignWords are common function words of other Latin-script languages
var foreignWords = set(
	// es / pt
	"que", "el", "los", "las", "del", "es", "muy", "por", "para", "con", "una", "uno", "pero",
	"como", "mas", "esto", "esta", "este", "eso", "gracias", "hola", "nao", "um", "uma", "voce",
	"obrigado", "muito", "bom", "bueno", "mejor", "todo", "tambem", "tambien", "encanta", "ele",
	// fr
	"le", "les", "des", "une", "est", "pas", "je", "tu", "nous", "vous", "avec", "pour", "merci",
	"tres", "cest", "mais", "sur", "dans", "cette",
	// de / nl
	"der", "die", "das", "und", "ist", "nicht", "ich", "du", "sie", "wir", "mit", "auf", "sehr",
	"danke", "het", "een", "niet", "zijn", "ook", "maar",
	// it
	"che", "il", "sono", "della", "bello", "grazie", "molto", "perche", "questo",
	// id / ms / tl
	"yang", "dan", "ini", "itu", "tidak", "saya", "aku", "kamu", "sangat", "bagus", "ng", "ang", "mga",
	"sa", "po", "ako",
)

package classify

// The phrase sets below are the classifier contract. Matching is by substring
// over the normalized utterance, in the order the rules are applied in
// [Classify]. Hebrew entries carry first- and second-person gendered variants
// where the surface form differs.

// greetings are utterances treated as pure greetings: they classify as
// initial and trigger the engine's greeting shortcut.
var greetings = []string{
	"היי",
	"שלום",
	"הי",
	"שלום שלום",
}

// emotionalPhrases cover sadness, anger, fear, anxiety, worry, frustration,
// discouragement, and general negative affect.
var emotionalPhrases = []string{
	// sadness
	"עצוב",
	"עצובה",
	"אני עצוב",
	"אני עצובה",
	"בא לי לבכות",
	"רוצה לבכות",
	"בוכה",
	// anger
	"כועס",
	"כועסת",
	"אני כועס",
	"אני כועסת",
	"מעצבן",
	"מעצבנת",
	"עצבני",
	"עצבנית",
	// fear
	"מפחד",
	"מפחדת",
	"פוחד",
	"פוחדת",
	"מפחיד",
	// anxiety and worry
	"לחוץ",
	"לחוצה",
	"חרד",
	"חרדה",
	"דואג",
	"דואגת",
	"מודאג",
	"מודאגת",
	// frustration
	"מתוסכל",
	"מתוסכלת",
	"תסכול",
	"נמאס לי",
	"אין לי כוח",
	"לא בא לי",
	// discouragement
	"אני לא מסוגל",
	"אני לא מסוגלת",
	"לא אצליח",
	"אני גרוע",
	"אני גרועה",
	"לא טוב בזה",
	"מוותר",
	"מוותרת",
	"אני אפס",
	// general negative
	"נורא",
	"איום",
	"עייף",
	"עייפה",
	"משעמם",
	"קשה לי",
	"רע לי",
}

// confusionPhrases indicate non-understanding: Hebrew confusion phrases, the
// standalone question mark, and Hebrew and English interrogative words.
var confusionPhrases = []string{
	"לא הבנתי",
	"לא מבין",
	"לא מבינה",
	"לא ברור",
	"לא יודע",
	"לא יודעת",
	"מבולבל",
	"מבולבלת",
	"תסביר",
	"תסבירי",
	"עזרה",
	"תעזור",
	"תעזרי",
	"?",
	// interrogatives
	"מה",
	"למה",
	"איך",
	"מתי",
	"איפה",
	"מי ",
	"כמה",
	"מדוע",
	"what",
	"why",
	"how",
	"when",
	"where",
	"help",
}

// understandingPhrases are affirmations that the learner has understood.
var understandingPhrases = []string{
	"הבנתי",
	"ברור",
	"יודע",
	"מבין",
	"אוקיי",
	"בסדר",
	"נכון",
	"כן",
}

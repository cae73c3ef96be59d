package catalog

import "github.com/lernobot/lernobot/pkg/types"

// greetingText is the fixed opening message. Returned by the engine's
// greeting shortcut without any model call.
const greetingText = "היי! אני לרנובוט 🤖 אני כאן כדי לעזור לך להבין את המשימה. על מה היית רוצה שנעבוד יחד?"

// escalationText is the fixed terminal message when every strategy has been
// exhausted or the test-mode ceiling was reached.
const escalationText = "אני רואה שזה באמת מאתגר. זה בסדר גמור! שלחתי קריאה למורה שתבוא לעזור לך. בינתיים, קח נשימה עמוקה — אתה עושה עבודה טובה 💪"

// ocrFailureText is returned when an image yields no readable text after all
// OCR attempts.
const ocrFailureText = "מצטער, לא הצלחתי לקרוא את התמונה 😕 אפשר לנסות לצלם שוב עם יותר אור, או פשוט לכתוב לי את המשימה?"

// visionPromptText is the instruction-agnostic Hebrew prompt sent with an
// image to a vision-capable model.
const visionPromptText = `בתמונה המצורפת יש משימה לימודית. קרא את הטקסט שבתמונה, תאר בעברית פשוטה מה המשימה מבקשת, ואז שאל את התלמיד איך היית יכול לעזור: להסביר, לפרק לשלבים, או לתת דוגמה. דבר בגובה העיניים לתלמיד עם קשיי למידה.`

// encouragements are appended at random by PickEncouragement.
var encouragements = []string{
	"אתה בכיוון הנכון! 🌟",
	"כל הכבוד שאתה ממשיך לנסות!",
	"יופי של התקדמות! 👏",
	"אני מאמין בך, בוא ננסה יחד!",
	"מעולה שאתה שואל — ככה לומדים!",
}

// templates are the generation prompts, keyed by (strategy, mode). Variables:
// {{.instruction}} always; {{.concept}} for provide_example only. Test-mode
// variants guide without revealing solutions.
var templates = map[types.Strategy]map[types.Mode]string{
	types.StrategyEmotionalSupport: {
		types.ModePractice: `תלמיד עם קשיי למידה מרגיש תסכול מול המשימה: "{{.instruction}}". כתוב לו בעברית משפט או שניים של עידוד חם ואמפתי, בלי להסביר את המשימה עדיין. דבר בגובה העיניים.`,
		types.ModeTest:     `תלמיד מרגיש לחץ במהלך מבחן מול השאלה: "{{.instruction}}". כתוב לו בעברית משפט קצר ומרגיע שמחזיר ביטחון, בלי לרמוז על הפתרון.`,
	},
	types.StrategyHighlightKeywords: {
		types.ModePractice: `במשימה הבאה: "{{.instruction}}" — זהה את שתיים־שלוש מילות המפתח החשובות ביותר, הצג אותן לתלמיד והסבר בעברית פשוטה למה כל אחת מהן חשובה להבנת המשימה.`,
		types.ModeTest:     `בשאלת המבחן: "{{.instruction}}" — הצבע על מילות המפתח שכדאי לתלמיד לשים לב אליהן, בלי להסביר את דרך הפתרון.`,
	},
	types.StrategyGuidedReading: {
		types.ModePractice: `קרא יחד עם התלמיד את המשימה: "{{.instruction}}". פרק אותה למשפטים קצרים, וקרא אותה שוב לאט בעברית פשוטה, משפט אחר משפט, כשאתה עוצר אחרי כל משפט ושואל אם הוא ברור.`,
		types.ModeTest:     `עזור לתלמיד לקרוא שוב את השאלה: "{{.instruction}}". נסח אותה מחדש בעברית פשוטה יותר, בלי להוסיף מידע שלא נמצא בשאלה.`,
	},
	types.StrategyProvideExample: {
		types.ModePractice: `התלמיד מתקשה במשימה: "{{.instruction}}". תן דוגמה פשוטה ומוחשית מהחיים בנושא {{.concept}}, פתור אותה צעד אחר צעד בעברית פשוטה, ואז הזמן את התלמיד לנסות את המשימה המקורית.`,
		types.ModeTest:     `התלמיד מתקשה בשאלת מבחן: "{{.instruction}}". תן דוגמה דומה אך שונה בנושא {{.concept}}, והראה את דרך החשיבה בלי לפתור את השאלה המקורית.`,
	},
	types.StrategyBreakdownSteps: {
		types.ModePractice: `פרק את המשימה: "{{.instruction}}" לשלבים קטנים וממוספרים. כתוב כל שלב במשפט קצר בעברית פשוטה, והתחל מהשלב הקל ביותר. סיים בשאלה אם התלמיד מוכן להתחיל בשלב הראשון.`,
		types.ModeTest:     `פרק את שאלת המבחן: "{{.instruction}}" לשלבי עבודה ממוספרים, בלי לבצע אף שלב בעצמך. כל שלב במשפט קצר בעברית פשוטה.`,
	},
	types.StrategyDetailedExplanation: {
		types.ModePractice: `הסבר לתלמיד עם קשיי למידה את המשימה: "{{.instruction}}" בצורה המפורטת והסבלנית ביותר: מה מבקשים, אילו ידע או כלים צריך, ואיך ניגשים לפתרון. עברית פשוטה, משפטים קצרים, בלי מושגים מסובכים.`,
		types.ModeTest:     `הסבר לתלמיד מה בדיוק נדרש בשאלה: "{{.instruction}}" — מה סוג התשובה המצופה ואיך כדאי לגשת אליה, בלי לגלות את התשובה עצמה.`,
	},
}

// fallbackTexts are short fixed responses substituted when generation fails.
// They stay on-strategy so the learner still receives usable guidance.
var fallbackTexts = map[types.Strategy]string{
	types.StrategyEmotionalSupport:    "זה בסדר גמור להתקשות! כולם מתקשים לפעמים. בוא ננסה יחד, צעד אחר צעד 💙",
	types.StrategyHighlightKeywords:   "בוא נסתכל יחד על המילים החשובות במשימה. נסה לסמן את המילים שנראות לך הכי חשובות — הן המפתח להבנה.",
	types.StrategyGuidedReading:       "בוא נקרא את המשימה יחד, לאט לאט. קרא משפט אחד, עצור, וספר לי במילים שלך מה הבנת.",
	types.StrategyProvideExample:      "לפעמים דוגמה עוזרת להבין. נסה לחשוב על מקרה דומה ופשוט יותר שאתה כבר מכיר, ונפתור אותו יחד.",
	types.StrategyBreakdownSteps:      "בוא נחלק את המשימה לחלקים קטנים. נתחיל מהחלק הכי קל — מה הדבר הראשון שצריך לעשות?",
	types.StrategyDetailedExplanation: "בוא נעבור על המשימה לאט ובפירוט. נתחיל מההתחלה: מה לדעתך מבקשים ממך לעשות?",
	types.StrategyTeacherEscalation:   escalationText,
}

// emotionalResponses maps emotional phrases to verbatim responses. Generation
// is bypassed for these because small models produced poor emotional
// responses in practice; the table is authoritative.
var emotionalResponses = []struct {
	phrase   string
	response string
}{
	{"עצוב", "אני מבין שאתה מרגיש עצוב 💙 זה בסדר להרגיש ככה. בוא ננשום יחד רגע, ונמשיך לאט — אני איתך."},
	{"רוצה לבכות", "זה בסדר גמור לבכות כשקשה. אתה לא לבד — אני כאן, ונעבור את זה יחד, צעד קטן בכל פעם."},
	{"כועס", "אני שומע שאתה כועס, וזה מובן לגמרי. בוא ניקח הפסקה קטנה של נשימה, ואז ננסה דרך אחרת יחד."},
	{"מעצבן", "כשמשהו לא מסתדר זה באמת מעצבן! בוא ננסה להסתכל על זה מכיוון אחר — לפעמים זה כל ההבדל."},
	{"מפחד", "אין מה לפחד — אי אפשר להיכשל כשמנסים! כל ניסיון מקדם אותך. אני כאן לעזור בכל שלב."},
	{"פוחד", "זה טבעי לפחד ממשהו חדש. בוא נתחיל ממשהו קטן וקל, ותראה שזה פחות מפחיד ממה שזה נראה."},
	{"לחוץ", "קח נשימה עמוקה 🌬️ אין שום לחץ — נעבוד בקצב שלך, לאט ובנחת. מה שחשוב זה להתקדם, לא למהר."},
	{"נמאס לי", "אני מבין שנמאס לך — עבדת קשה! בוא נעשה הפסקה קצרה, ואחריה ננסה משהו קצת שונה ביחד."},
	{"אין לי כוח", "נשמע שאתה עייף. זה בסדר לנוח רגע. כשתהיה מוכן, נמשיך יחד — גם צעד קטן הוא התקדמות."},
	{"אני לא מסוגל", "אתה כן מסוגל! אולי עוד לא — וזו המילה החשובה: עוד. בוא נמצא יחד את הצעד הראשון הקטן."},
	{"אני גרוע", "אתה ממש לא גרוע! להתקשות זה חלק מללמוד, וזה שאתה פה ומנסה אומר המון. בוא נמשיך יחד."},
	{"מתוסכל", "תסכול מראה שאכפת לך — וזה דבר טוב! בוא נפרק את הקושי לחתיכות קטנות ונתגבר עליו אחת־אחת."},
}

// conceptKeywords derives the concept variable for provide_example from the
// instruction text. First match wins; default is the general-task concept.
var conceptKeywords = []struct {
	keyword string
	concept string
}{
	{"חישוב", "חשבון במתמטיקה"},
	{"חשבו", "חשבון במתמטיקה"},
	{"פתור", "פתרון תרגילים"},
	{"חיבור", "חיבור מספרים"},
	{"חיסור", "חיסור מספרים"},
	{"כפל", "כפל מספרים"},
	{"חילוק", "חילוק מספרים"},
	{"שבר", "שברים"},
	{"קרא", "הבנת הנקרא"},
	{"קריאה", "הבנת הנקרא"},
	{"כתוב", "כתיבה"},
	{"כתבו", "כתיבה"},
	{"ספר", "סיפור"},
	{"צייר", "ציור ויצירה"},
}

// defaultConcept is used when no keyword matches.
const defaultConcept = "משימה כללית"

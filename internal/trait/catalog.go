package trait

// f declares a float trait field scored in [0, 1].
func f(name, desc string) FieldSpec {
	return FieldSpec{Name: name, Type: FieldFloat, Desc: desc}
}

// s declares a string label field.
func s(name, desc string) FieldSpec {
	return FieldSpec{Name: name, Type: FieldString, Desc: desc}
}

// catalog holds the field inventory of every kind. Float fields read as
// a 0-to-1 axis between the two poles named in the description.
var catalog = map[Kind][]FieldSpec{
	KindSocial: {
		f("locus_control", "0=others are to blame, 1=owns their outcomes"),
		f("independence", "0=dependent on others' opinions, 1=self-directed"),
		f("empathy", "ability to read the feelings of others"),
		f("physical_sensitivity", "comfort with physical closeness in company"),
		f("extraversion", "0=introvert, 1=extravert"),
		f("altruism", "self-interest versus selfless help"),
		f("conformity", "independence versus group influence"),
		f("social_confidence", "0=shy, 1=assured in conversation"),
		f("competitiveness", "0=cooperative, 1=competitive"),
	},
	KindCognitive: {
		f("reflectiveness", "habit of examining one's own thinking"),
		f("intuitiveness", "reliance on gut feel over deliberation"),
		f("fantasy_prone", "tendency toward daydreaming and imagination"),
		f("creativity", "drive to produce novel ideas"),
		f("thinking_style", "0=concrete, 1=abstract"),
		f("tolerance_for_ambiguity", "comfort with unresolved situations"),
		f("mental_flexibility", "ease of switching framings and plans"),
	},
	KindEmotional: {
		f("optimism", "expectation that things work out"),
		f("self_esteem", "baseline sense of self-worth"),
		f("self_irony", "ability to laugh at oneself"),
		f("intimacy_capacity", "capacity for emotional closeness"),
		f("emotional_sensitivity", "how strongly events register emotionally"),
		f("emotional_expressiveness", "how visibly feelings are shown"),
		f("anxiety_level", "baseline worry and tension"),
		f("patience", "tolerance for delay and friction"),
		f("stress_tolerance", "composure under pressure"),
	},
	KindBehavioral: {
		f("ambition", "drive toward long-term goals"),
		f("decisiveness", "speed of committing to a choice"),
		f("risk_taking", "appetite for uncertain outcomes"),
		f("perfectionism", "need for flawless results"),
		f("impulse_control", "ability to defer gratification"),
	},
	KindHumor: {
		s("dominant_style", "the style that shows up most"),
		f("affiliative_humor", "jokes that bond the group"),
		f("self_enhancing_humor", "humor as a coping stance"),
		f("aggressive_humor", "humor at others' expense"),
		f("self_defeating_humor", "humor at one's own expense to please"),
		f("sarcasm_level", "frequency of sarcastic framing"),
		f("dark_humor", "comfort with morbid subjects"),
		f("observational_humor", "everyday-life observation comedy"),
		f("witty_quick", "speed of verbal wit"),
		f("absurd_surreal", "taste for nonsense and the surreal"),
		f("dry_deadpan", "flat-delivery humor"),
		f("self_deprecating", "gentle jokes about oneself"),
		f("humor_frequency", "how often humor appears at all"),
		f("humor_in_stress", "reaching for humor under pressure"),
		f("humor_in_social", "humor as a social instrument"),
	},
	KindDarkTriad: {
		f("cynicism", "distrust of others' motives"),
		f("narcissism", "grandiosity and need for admiration"),
		f("machiavellianism", "strategic manipulation of others"),
		f("psychoticism", "coldness and impulsive antagonism"),
	},
	KindHexaco: {
		f("honesty_humility", "H: 0=manipulative, entitled; 1=sincere, modest"),
		f("emotionality", "E: anxiety, sentimentality, need for support"),
		f("extraversion", "X: social boldness and liveliness"),
		f("agreeableness", "A: forgiveness, gentleness, patience"),
		f("conscientiousness", "C: organization, diligence, prudence"),
		f("openness", "O: curiosity, creativity, unconventionality"),
	},
	KindClinical: {
		f("anxiety", "generalized worry markers"),
		f("depression", "low-mood and anhedonia markers"),
		f("emotional_stability", "resilience of mood over time"),
		f("compulsivity", "rigid repetitive behavior markers"),
		f("paranoia", "suspicious ideation markers"),
	},
	KindLoveLanguage: {
		f("words_of_affirmation", "valuing spoken appreciation"),
		f("acts_of_service", "valuing helpful deeds"),
		f("receiving_gifts", "valuing tangible tokens"),
		f("quality_time", "valuing undivided attention"),
		f("physical_touch", "valuing physical affection"),
	},
	KindRelationship: {
		f("libido", "strength of sexual drive"),
		f("adventurousness", "openness to novelty with a partner"),
		f("emotional_intimacy_need", "need for closeness before intimacy"),
		f("dominance", "0=submissive, 1=dominant"),
	},
}

package dialogue

import "fmt"

// langTexts 按语言分组的内置话术，缺失语言时回退到英文
var langTexts = map[string]map[string][]string{
	"invalid_input.1": {
		"en": {
			"Your input is not valid!",
			"Your input is invalid!",
		},
		"de": {
			"Dein Input ist nicht gültig!",
			"Dein Input ist ungültig!",
		},
	},
	"invalid_input.2": {
		"en": {
			"(Your input might be too long or contains invalid characters)",
		},
		"de": {
			"(Dein Input ist möglicherweise zu lang oder beinhaltet ungültige Zeichen)",
		},
	},
	"intent_not_understand": {
		"en": {
			"Oops, it seems that I did not understand your intent. Can you try to rephrase it for me?",
			"Sorry, but I did not understand your intent. Can you try to rephrase it for me?",
			"Sorry, can you rephrase that for me?",
		},
	},
	"verify_intent_not_understand": {
		"en": {
			"Can you help me to figure out your intent?",
			"I am trying to figure out what you were saying:",
			"I am not sure if I understood correctly. Here are some suggestions:",
			"Did you mean one of these intents?",
			"What did you mean by that?",
		},
	},
	"verify_intent_none.1": {
		"en": {
			"Sorry that I could not help",
			"Okay",
		},
	},
	"verify_intent_none.2": {
		"en": {
			"Maybe you want to rephrase your intent for me",
			"You can try to rephrase your intent for me",
		},
	},
	"verify_intent_thanks": {
		"en": {
			"Thank you, this really helps me to learn over time!",
			"Great, this helps me to improve over time!",
			"Thanks! I will remember that.",
		},
	},
}

// texts 返回某个话术键在指定语言下的候选文本
func texts(key, language string) []string {
	byLang, ok := langTexts[key]
	if !ok {
		return nil
	}
	if res, ok := byLang[language]; ok {
		return res
	}
	return byLang["en"]
}

// DefaultEntityQuestions 追问实体值时的默认提问模板
func DefaultEntityQuestions(entityName, language string) []string {
	if language == "de" {
		return []string{
			fmt.Sprintf("Was ist der Wert für %s?", entityName),
			fmt.Sprintf("Bitte gebe einen Wert an für %s", entityName),
		}
	}
	return []string{
		fmt.Sprintf("What is the value for %s?", entityName),
		fmt.Sprintf("Please give a value for %s", entityName),
	}
}

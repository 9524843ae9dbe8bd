// Package nlp 提供分词、文本向量化和文本相似度计算能力
package nlp

import (
	"regexp"
	"strings"
)

var wordRegex = regexp.MustCompile(`[\p{L}\p{N}]+`)

// englishStopwords 英文停用词表
var englishStopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "can": true, "do": true, "for": true,
	"from": true, "have": true, "he": true, "her": true, "his": true, "i": true,
	"if": true, "in": true, "is": true, "it": true, "its": true, "me": true,
	"my": true, "no": true, "not": true, "of": true, "on": true, "or": true,
	"she": true, "so": true, "that": true, "the": true, "their": true,
	"them": true, "they": true, "this": true, "to": true, "us": true,
	"was": true, "we": true, "were": true, "what": true, "when": true,
	"where": true, "which": true, "who": true, "will": true, "with": true,
	"would": true, "you": true, "your": true,
}

// Tokenize 把文本切分为小写单词序列
func Tokenize(text string) []string {
	words := wordRegex.FindAllString(text, -1)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return words
}

// IsStopword 判断单词是否为停用词
func IsStopword(word string) bool {
	return englishStopwords[strings.ToLower(word)]
}

// Stem 对英文单词做轻量词干化，让同一单词的不同形态落到同一词项
// （例如 "countries"/"country"、"asking"/"asked"）
func Stem(word string) string {
	w := strings.ToLower(word)
	switch {
	case strings.HasSuffix(w, "sses"):
		w = strings.TrimSuffix(w, "es")
	case strings.HasSuffix(w, "ies") && len(w) > 4:
		w = strings.TrimSuffix(w, "ies") + "i"
	case strings.HasSuffix(w, "ss"):
		// 保留
	case strings.HasSuffix(w, "s") && len(w) > 3:
		w = strings.TrimSuffix(w, "s")
	}
	switch {
	case strings.HasSuffix(w, "ing") && len(w) > 5:
		w = strings.TrimSuffix(w, "ing")
	case strings.HasSuffix(w, "ed") && len(w) > 4:
		w = strings.TrimSuffix(w, "ed")
	}
	// 辅音+y结尾换成i，让单复数落到同一词干（country/countri）
	if strings.HasSuffix(w, "y") && len(w) > 4 && !isVowel(w[len(w)-2]) {
		w = w[:len(w)-1] + "i"
	}
	return w
}

func isVowel(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

// Terms 把文本切分为词干化后的检索词项
func Terms(text string) []string {
	words := Tokenize(text)
	terms := make([]string, len(words))
	for i, w := range words {
		terms[i] = Stem(w)
	}
	return terms
}

// ContentTerms 把文本切分为词干化且去除停用词的检索词项
func ContentTerms(text string) []string {
	var terms []string
	for _, w := range Tokenize(text) {
		if englishStopwords[w] {
			continue
		}
		terms = append(terms, Stem(w))
	}
	return terms
}

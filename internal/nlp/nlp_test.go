package nlp

import (
	"math"
	"testing"
)

// TestTokenize 测试分词
func TestTokenize(t *testing.T) {
	words := Tokenize("I live in Germany, since 2020!")
	want := []string{"i", "live", "in", "germany", "since", "2020"}
	if len(words) != len(want) {
		t.Fatalf("期望 %d 个单词，但得到 %d: %v", len(want), len(words), words)
	}
	for i, w := range want {
		if words[i] != w {
			t.Errorf("期望第%d个单词为 %q，但得到 %q", i, w, words[i])
		}
	}
}

// TestStem 测试轻量词干化
func TestStem(t *testing.T) {
	cases := []struct {
		word string
		want string
	}{
		{"countries", "countri"},
		{"country", "countri"},
		{"asking", "ask"},
		{"asked", "ask"},
		{"classes", "class"},
		{"class", "class"},
		{"cats", "cat"},
		{"Germany", "germani"},
		{"money", "money"}, // 元音+y不变
		{"play", "play"},
	}
	for _, c := range cases {
		if got := Stem(c.word); got != c.want {
			t.Errorf("期望 Stem(%q) = %q，但得到 %q", c.word, c.want, got)
		}
	}

	t.Run("同一单词的不同形态落到同一词项", func(t *testing.T) {
		if Stem("countries") != Stem("country") {
			t.Errorf("期望 countries 和 country 词干相同")
		}
		if Stem("asking") != Stem("asked") {
			t.Errorf("期望 asking 和 asked 词干相同")
		}
	})
}

// TestContentTerms 测试停用词过滤
func TestContentTerms(t *testing.T) {
	terms := ContentTerms("I live in the city")
	for _, term := range terms {
		if term == "i" || term == "in" || term == "the" {
			t.Errorf("期望停用词被过滤，但出现了 %q", term)
		}
	}
	if len(terms) != 2 {
		t.Errorf("期望剩余2个词项，但得到 %d: %v", len(terms), terms)
	}
}

// TestCosineSimilarity 测试余弦相似度
func TestCosineSimilarity(t *testing.T) {
	if got := CosineSimilarity([]float64{1, 0}, []float64{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Errorf("期望相同向量的相似度为 1，但得到 %v", got)
	}
	if got := CosineSimilarity([]float64{1, 0}, []float64{0, 1}); math.Abs(got) > 1e-9 {
		t.Errorf("期望正交向量的相似度为 0，但得到 %v", got)
	}
	if got := CosineSimilarity([]float64{0, 0}, []float64{1, 1}); got != 0 {
		t.Errorf("期望零向量的相似度为 0，但得到 %v", got)
	}
	if got := CosineSimilarity([]float64{1}, []float64{1, 0}); got != 0 {
		t.Errorf("期望维度不同的向量相似度为 0，但得到 %v", got)
	}
}

// TestHashingVectorizer 测试特征哈希向量器
func TestHashingVectorizer(t *testing.T) {
	v := NewHashingVectorizer("test.hashing", 64)

	t.Run("结果确定", func(t *testing.T) {
		v1, err := v.Vectorize("I live in Germany")
		if err != nil {
			t.Fatalf("向量化失败: %v", err)
		}
		v2, _ := v.Vectorize("I live in Germany")
		for i := range v1 {
			if v1[i] != v2[i] {
				t.Fatalf("期望相同文本的向量完全一致")
			}
		}
	})

	t.Run("L2归一化", func(t *testing.T) {
		vec, _ := v.Vectorize("hello world")
		var norm float64
		for _, x := range vec {
			norm += x * x
		}
		if math.Abs(norm-1) > 1e-9 {
			t.Errorf("期望向量L2范数为 1，但得到 %v", math.Sqrt(norm))
		}
	})

	t.Run("相似文本的相似度更高", func(t *testing.T) {
		a, _ := v.Vectorize("I live in Germany")
		b, _ := v.Vectorize("I live in France")
		c, _ := v.Vectorize("tell me a joke")

		simAB := CosineSimilarity(a, b)
		simAC := CosineSimilarity(a, c)
		if simAB <= simAC {
			t.Errorf("期望相似句子的相似度更高，但得到 %v <= %v", simAB, simAC)
		}
	})
}

// TestVectorTextScorer 测试向量相似度评分器
func TestVectorTextScorer(t *testing.T) {
	scorer := NewVectorTextScorer("test.scorer", NewHashingVectorizer("test.hashing", 64), true)

	a1, err := scorer.Annotate("I Live In GERMANY")
	if err != nil {
		t.Fatalf("预处理失败: %v", err)
	}
	a2, _ := scorer.Annotate("i live in germany")

	if got := scorer.Similarity(a1, a2); math.Abs(got-1) > 1e-9 {
		t.Errorf("期望忽略大小写后相似度为 1，但得到 %v", got)
	}
}

// TestSequenceMatcherTextScorer 测试字符匹配率评分器
func TestSequenceMatcherTextScorer(t *testing.T) {
	scorer := NewSequenceMatcherTextScorer("test.seq")

	annotate := func(text string) *Annotation {
		a, err := scorer.Annotate(text)
		if err != nil {
			t.Fatalf("预处理失败: %v", err)
		}
		return a
	}

	t.Run("完全相同", func(t *testing.T) {
		if got := scorer.Similarity(annotate("hello"), annotate("Hello")); math.Abs(got-1) > 1e-9 {
			t.Errorf("期望大小写不同的相同文本相似度为 1，但得到 %v", got)
		}
	})

	t.Run("完全不同", func(t *testing.T) {
		if got := scorer.Similarity(annotate("abc"), annotate("xyz")); got != 0 {
			t.Errorf("期望无公共字符的相似度为 0，但得到 %v", got)
		}
	})

	t.Run("部分匹配", func(t *testing.T) {
		// "abcd"与"bcde": 公共块"bcd"长3，2*3/(4+4)=0.75
		if got := scorer.Similarity(annotate("abcd"), annotate("bcde")); math.Abs(got-0.75) > 1e-9 {
			t.Errorf("期望相似度为 0.75，但得到 %v", got)
		}
	})

	t.Run("空文本", func(t *testing.T) {
		if got := scorer.Similarity(annotate(""), annotate("")); got != 1 {
			t.Errorf("期望两段空文本的相似度为 1，但得到 %v", got)
		}
	})
}

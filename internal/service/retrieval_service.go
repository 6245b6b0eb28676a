package service

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"mcq_tutor_backend/internal/config"
)

// Evidence 一条检索出的讲义句子及其与查询的余弦相似度
type Evidence struct {
	Sentence string  `json:"sentence"`
	Score    float64 `json:"score"`
}

// RetrievalService 基于 TF-IDF 的讲义证据检索。
// 语料只有单篇讲义的几十个句子，向量在每次请求内即时构建，不做持久索引。
type RetrievalService struct {
	topK          int
	minSimilarity float64
}

func NewRetrievalService(cfg *config.Config) *RetrievalService {
	return &RetrievalService{
		topK:          cfg.XAI.EvidenceTopK,
		minSimilarity: cfg.XAI.EvidenceMinSimilarity,
	}
}

var englishStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "he": {}, "in": {}, "is": {},
	"it": {}, "its": {}, "of": {}, "on": {}, "that": {}, "the": {}, "to": {},
	"was": {}, "were": {}, "will": {}, "with": {}, "this": {}, "these": {},
	"those": {}, "they": {}, "their": {}, "which": {}, "or": {}, "not": {},
	"but": {}, "can": {}, "been": {}, "have": {}, "had": {}, "do": {},
	"does": {}, "such": {}, "into": {}, "than": {}, "then": {}, "also": {},
	"we": {}, "you": {}, "your": {}, "all": {}, "any": {}, "each": {},
	"more": {}, "most": {}, "other": {}, "some": {}, "no": {}, "nor": {},
	"only": {}, "so": {}, "too": {}, "very": {}, "s": {}, "t": {},
	"what": {}, "when": {}, "where": {}, "who": {}, "why": {}, "how": {},
	"if": {}, "about": {}, "between": {}, "both": {}, "during": {},
	"through": {}, "over": {}, "under": {}, "again": {}, "there": {},
	"here": {}, "because": {}, "while": {}, "them": {}, "him": {}, "her": {},
	"his": {}, "she": {}, "i": {}, "me": {}, "my": {}, "our": {}, "us": {},
}

func isTerminalPunct(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// SplitSentences 将讲义文本切分为候选句子。
// 在句末标点后跟空白处断句，换行也视为句子边界，过滤掉 20 个字符以内的短句。
func SplitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	var current []rune

	flush := func() {
		s := strings.TrimSpace(string(current))
		if len([]rune(s)) > 20 {
			sentences = append(sentences, s)
		}
		current = current[:0]
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\n' {
			flush()
			continue
		}
		current = append(current, r)
		if isTerminalPunct(r) {
			next := rune(0)
			if i+1 < len(runes) {
				next = runes[i+1]
			}
			if next == 0 || unicode.IsSpace(next) {
				flush()
			}
		}
	}
	flush()

	return sentences
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, stop := englishStopwords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// Retrieve 返回与 query 最相关的 topK 条讲义句子，按相似度降序。
// 相似度不超过阈值的句子被丢弃，讲义为空或没有可用句子时返回 nil。
func (s *RetrievalService) Retrieve(lectureText, query string) []Evidence {
	sentences := SplitSentences(lectureText)
	if len(sentences) == 0 || strings.TrimSpace(query) == "" {
		return nil
	}

	docs := make([][]string, len(sentences))
	df := make(map[string]int)
	for i, sent := range sentences {
		docs[i] = tokenize(sent)
		seen := make(map[string]struct{})
		for _, tok := range docs[i] {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	// 平滑 IDF：ln((1+n)/(1+df)) + 1
	n := float64(len(sentences))
	idf := make(map[string]float64, len(df))
	for tok, count := range df {
		idf[tok] = math.Log((1+n)/(1+float64(count))) + 1
	}

	vectors := make([]map[string]float64, len(docs))
	for i, tokens := range docs {
		vectors[i] = tfidfVector(tokens, idf)
	}

	queryVec := tfidfVector(tokenize(query), idf)
	if len(queryVec) == 0 {
		return nil
	}

	var results []Evidence
	for i, vec := range vectors {
		score := dot(queryVec, vec)
		if score > s.minSimilarity {
			results = append(results, Evidence{Sentence: sentences[i], Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > s.topK {
		results = results[:s.topK]
	}
	return results
}

// tfidfVector 构建 L2 归一化的 TF-IDF 向量，归一化后点积即余弦相似度
func tfidfVector(tokens []string, idf map[string]float64) map[string]float64 {
	if len(tokens) == 0 {
		return nil
	}

	tf := make(map[string]float64)
	for _, tok := range tokens {
		tf[tok]++
	}

	vec := make(map[string]float64, len(tf))
	var norm float64
	for tok, count := range tf {
		w, ok := idf[tok]
		if !ok {
			continue
		}
		v := count * w
		vec[tok] = v
		norm += v * v
	}

	if norm == 0 {
		return nil
	}
	norm = math.Sqrt(norm)
	for tok := range vec {
		vec[tok] /= norm
	}
	return vec
}

func dot(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for tok, v := range a {
		if w, ok := b[tok]; ok {
			sum += v * w
		}
	}
	return sum
}

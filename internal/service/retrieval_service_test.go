package service

import (
	"testing"

	"mcq_tutor_backend/internal/config"

	"github.com/stretchr/testify/assert"
)

func newTestRetrieval() *RetrievalService {
	return NewRetrievalService(&config.Config{
		XAI: config.XAIConfig{
			EvidenceTopK:          3,
			EvidenceMinSimilarity: 0.1,
		},
	})
}

func TestSplitSentences(t *testing.T) {
	text := "Mitochondria produce ATP through oxidative phosphorylation. Short. " +
		"Ribosomes synthesize proteins in the cytoplasm.\nThe nucleus stores genetic material safely."

	sentences := SplitSentences(text)

	assert.Len(t, sentences, 3)
	assert.Equal(t, "Mitochondria produce ATP through oxidative phosphorylation.", sentences[0])
	assert.Equal(t, "Ribosomes synthesize proteins in the cytoplasm.", sentences[1])
	assert.Equal(t, "The nucleus stores genetic material safely.", sentences[2])
}

func TestSplitSentencesDropsShort(t *testing.T) {
	sentences := SplitSentences("Yes. No! Maybe? Too short here.")
	assert.Empty(t, sentences)
}

func TestSplitSentencesLengthFilterCountsRunes(t *testing.T) {
	// 14 个字符 42 字节，按字符数算仍是短句，要被过滤掉
	sentences := SplitSentences("细胞核保存遗传物质十分安全。\nThe nucleus stores genetic material safely.")
	assert.Len(t, sentences, 1)
	assert.Equal(t, "The nucleus stores genetic material safely.", sentences[0])
}

func TestSplitSentencesNoAbbreviationBreak(t *testing.T) {
	// 标点后没有空白时不断句，小数点不会切碎句子
	sentences := SplitSentences("The membrane potential rests near -70.5 millivolts in most neurons.")
	assert.Len(t, sentences, 1)
}

func TestRetrieveRanksRelevantSentencesFirst(t *testing.T) {
	lecture := "Mammals are warm-blooded animals that nurse their young with milk. " +
		"Reptiles are cold-blooded and lay leathery eggs on land. " +
		"Birds have feathers and hollow bones adapted for flight. " +
		"Some mammals like whales live entirely in the ocean water."

	results := newTestRetrieval().Retrieve(lecture, "Which animals nurse their young with milk? mammals")

	assert.NotEmpty(t, results)
	assert.Contains(t, results[0].Sentence, "warm-blooded")
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	assert.LessOrEqual(t, len(results), 3)
	for _, ev := range results {
		assert.Greater(t, ev.Score, 0.1)
	}
}

func TestRetrieveEmptyInputs(t *testing.T) {
	svc := newTestRetrieval()

	assert.Nil(t, svc.Retrieve("", "anything"))
	assert.Nil(t, svc.Retrieve("A lecture sentence that is long enough to keep.", "   "))
	// 查询词全是停用词时没有可比向量
	assert.Nil(t, svc.Retrieve("A lecture sentence that is long enough to keep.", "the and of"))
}

func TestRetrieveFiltersUnrelated(t *testing.T) {
	lecture := "Photosynthesis converts sunlight into chemical energy inside chloroplasts. " +
		"Glycolysis breaks down glucose into pyruvate in the cytoplasm."

	results := newTestRetrieval().Retrieve(lecture, "photosynthesis chloroplasts sunlight")

	assert.Len(t, results, 1)
	assert.Contains(t, results[0].Sentence, "Photosynthesis")
}

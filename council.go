package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// StageError means an entire stage could not produce a usable result, e.g.
// every council model failed in stage 1. It is fatal to the deliberation;
// no further stages run after one.
type StageError struct {
	Stage int
	Msg   string
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %d failed: %s", e.Stage, e.Msg)
}

// Council orchestrates the three-stage deliberation protocol. It holds no
// per-deliberation state; every Run works on values local to that call, so
// concurrent deliberations never see each other.
type Council struct {
	cfg    *Config
	client *Client
	log    *zap.Logger
}

// NewCouncil creates a council orchestrator over the given model client.
func NewCouncil(cfg *Config, client *Client, log *zap.Logger) *Council {
	return &Council{cfg: cfg, client: client, log: log}
}

// Run executes the full three-stage protocol for one user message.
// messages is the complete chat history ending with the user's query. Stage
// boundaries are published to pub as they happen (pub may be nil for
// non-streaming callers); terminal events are the caller's responsibility
// since persistence and title generation come after.
func (c *Council) Run(ctx context.Context, messages []ChatMessage, userQuery string, pub *Publisher) (*CouncilResult, error) {
	pub.Publish(Event{Type: EventStage1Start})
	stage1, err := c.Stage1CollectResponses(ctx, messages)
	if err != nil {
		return nil, err
	}
	c.log.Info("stage 1 complete",
		zap.Int("responses", len(stage1)),
		zap.Int("council_size", len(c.cfg.CouncilModels)))
	pub.Publish(Event{Type: EventStage1Complete, Data: stage1})

	pub.Publish(Event{Type: EventStage2Start})
	stage2, labelToModel, err := c.Stage2CollectRankings(ctx, userQuery, stage1)
	if err != nil {
		return nil, err
	}
	c.log.Info("stage 2 complete", zap.Int("rankings", len(stage2)))
	aggregate := CalculateAggregateRankings(stage2, labelToModel)
	metadata := Metadata{LabelToModel: labelToModel, AggregateRankings: aggregate}
	pub.Publish(Event{Type: EventStage2Complete, Data: stage2, Metadata: &metadata})

	pub.Publish(Event{Type: EventStage3Start})
	stage3, err := c.Stage3SynthesizeFinal(ctx, userQuery, stage1, stage2, aggregate)
	if err != nil {
		return nil, err
	}
	pub.Publish(Event{Type: EventStage3Complete, Data: stage3})

	return &CouncilResult{
		Stage1:   stage1,
		Stage2:   stage2,
		Stage3:   *stage3,
		Metadata: metadata,
	}, nil
}

// Stage1CollectResponses fans the conversation out to every council model and
// collects the individual answers. Failed models are logged by the gateway
// and excluded from the result; the deliberation only dies here if every
// single model failed.
func (c *Council) Stage1CollectResponses(ctx context.Context, messages []ChatMessage) ([]Stage1Response, error) {
	bundle := c.client.QueryModelsParallel(ctx, c.cfg.CouncilModels, messages, c.cfg.QueryTimeout)

	// Configured order is only a display default, never a ranking signal.
	stage1 := make([]Stage1Response, 0, len(bundle))
	for _, model := range c.cfg.CouncilModels {
		if response, ok := bundle[model]; ok && response.OK() {
			stage1 = append(stage1, Stage1Response{
				Model:    model,
				Response: response.Content,
			})
		}
	}

	if len(stage1) == 0 {
		return nil, &StageError{Stage: 1, Msg: "all council models failed to respond"}
	}
	return stage1, nil
}

// anonymizeResponses assigns "Response A", "Response B", ... labels to the
// successful stage-1 entries and returns them alongside the label-to-model
// mapping. Label order is shuffled per deliberation so a model cannot learn
// its own position from the council's fixed configuration order. Labels are
// single-use; the mapping is regenerated for every deliberation.
func anonymizeResponses(stage1 []Stage1Response) ([]LabeledResponse, map[string]string) {
	shuffled := make([]Stage1Response, len(stage1))
	copy(shuffled, stage1)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	labeled := make([]LabeledResponse, 0, len(shuffled))
	labelToModel := make(map[string]string, len(shuffled))
	for i, result := range shuffled {
		label := fmt.Sprintf("Response %c", 'A'+i)
		labelToModel[label] = result.Model
		labeled = append(labeled, LabeledResponse{Label: label, Content: result.Response})
	}
	return labeled, labelToModel
}

// buildRankingPrompt embeds the anonymized responses and the original
// question into the stage-2 evaluation prompt. Only labels appear in the
// prompt; real model identifiers must never reach the rankers.
func buildRankingPrompt(userQuery string, labeled []LabeledResponse) string {
	var responsesText strings.Builder
	for _, r := range labeled {
		responsesText.WriteString(fmt.Sprintf("%s:\n%s\n\n", r.Label, r.Content))
	}

	return fmt.Sprintf(`You are evaluating different responses to the following question:

Question: %s

Here are the responses from different models (anonymized):

%s

Your task:
1. First, evaluate each response individually. For each response, explain what it does well and what it does poorly.
2. Then, at the very end of your response, provide a final ranking.

IMPORTANT: Your final ranking MUST be formatted EXACTLY as follows:
- Start with the line "FINAL RANKING:" (all caps, with colon)
- Then list the responses from best to worst as a numbered list
- Each line should be: number, period, space, then ONLY the response label (e.g., "1. Response A")
- Do not add any other text or explanations in the ranking section

Example of the correct format for your ENTIRE response:

Response A provides good detail on X but misses Y...
Response B is accurate but lacks depth on Z...
Response C offers the most comprehensive answer...

FINAL RANKING:
1. Response C
2. Response A
3. Response B

Now provide your evaluation and ranking:`, userQuery, responsesText.String())
}

// Stage2CollectRankings anonymizes the stage-1 responses and fans the
// ranking prompt out to the same council models, so each model ranks all
// responses including, unknowingly, its own. Returns the rankings and the
// label-to-model mapping generated for this round.
func (c *Council) Stage2CollectRankings(ctx context.Context, userQuery string, stage1 []Stage1Response) ([]Stage2Ranking, map[string]string, error) {
	labeled, labelToModel := anonymizeResponses(stage1)
	rankingPrompt := buildRankingPrompt(userQuery, labeled)

	messages := []ChatMessage{{Role: "user", Content: rankingPrompt}}
	bundle := c.client.QueryModelsParallel(ctx, c.cfg.CouncilModels, messages, c.cfg.QueryTimeout)

	stage2 := make([]Stage2Ranking, 0, len(bundle))
	for _, model := range c.cfg.CouncilModels {
		response, ok := bundle[model]
		if !ok || !response.OK() {
			continue
		}
		stage2 = append(stage2, Stage2Ranking{
			Model:         model,
			Ranking:       response.Content,
			ParsedRanking: ParseRankingFromText(response.Content),
		})
	}

	if len(stage2) == 0 {
		return nil, nil, &StageError{Stage: 2, Msg: "no council model returned a ranking"}
	}
	return stage2, labelToModel, nil
}

var (
	numberedLabelPattern = regexp.MustCompile(`\d+\.\s*Response [A-Z]`)
	labelPattern         = regexp.MustCompile(`Response [A-Z]`)
)

// ParseRankingFromText extracts the ordered labels from a model's ranking
// text. It prefers the numbered list under the "FINAL RANKING:" marker, then
// any labels in that section, then any labels anywhere in the text. Free text
// with no discernible labels yields an empty ranking, which simply
// contributes nothing to aggregation.
func ParseRankingFromText(rankingText string) []string {
	if _, section, found := strings.Cut(rankingText, "FINAL RANKING:"); found {
		if numbered := numberedLabelPattern.FindAllString(section, -1); len(numbered) > 0 {
			results := make([]string, 0, len(numbered))
			for _, match := range numbered {
				results = append(results, labelPattern.FindString(match))
			}
			return results
		}
		if matches := labelPattern.FindAllString(section, -1); len(matches) > 0 {
			return matches
		}
	}
	return labelPattern.FindAllString(rankingText, -1)
}

// CalculateAggregateRankings converts the per-model rankings into a single
// ordering over real model identifiers. A label at position i (0-based) in a
// submission earns N-i points, N being the number of labels in play; points
// are summed per model and ties break on the model identifier so the total
// order is deterministic. Partial or unparseable submissions contribute only
// the labels they actually contain.
func CalculateAggregateRankings(stage2 []Stage2Ranking, labelToModel map[string]string) []AggregateRanking {
	n := len(labelToModel)
	scores := make(map[string]int)
	counts := make(map[string]int)

	for _, ranking := range stage2 {
		seen := make(map[string]bool)
		for position, label := range ranking.ParsedRanking {
			model, ok := labelToModel[label]
			if !ok || seen[label] {
				continue
			}
			seen[label] = true
			points := n - position
			if points < 1 {
				points = 1
			}
			scores[model] += points
			counts[model]++
		}
	}

	aggregate := make([]AggregateRanking, 0, len(scores))
	for model, score := range scores {
		aggregate = append(aggregate, AggregateRanking{
			Model:         model,
			Score:         score,
			RankingsCount: counts[model],
		})
	}

	sort.Slice(aggregate, func(i, j int) bool {
		if aggregate[i].Score != aggregate[j].Score {
			return aggregate[i].Score > aggregate[j].Score
		}
		return aggregate[i].Model < aggregate[j].Model
	})
	for i := range aggregate {
		aggregate[i].Rank = i + 1
	}

	return aggregate
}

// Stage3SynthesizeFinal sends the original question, every stage-1 response
// and the stage-2 ranking outcome to the chairman model for synthesis.
// Stage-1 content is attributed to real model identifiers here; anonymity
// only matters while models are ranking each other.
func (c *Council) Stage3SynthesizeFinal(ctx context.Context, userQuery string, stage1 []Stage1Response, stage2 []Stage2Ranking, aggregate []AggregateRanking) (*Stage3Response, error) {
	var stage1Text strings.Builder
	for _, result := range stage1 {
		stage1Text.WriteString(fmt.Sprintf("Model: %s\nResponse: %s\n\n", result.Model, result.Response))
	}

	var stage2Text strings.Builder
	for _, result := range stage2 {
		stage2Text.WriteString(fmt.Sprintf("Model: %s\nRanking: %s\n\n", result.Model, result.Ranking))
	}

	var aggregateText strings.Builder
	for _, entry := range aggregate {
		aggregateText.WriteString(fmt.Sprintf("%d. %s (%d points over %d rankings)\n",
			entry.Rank, entry.Model, entry.Score, entry.RankingsCount))
	}

	chairmanPrompt := fmt.Sprintf(`You are the Chairman of an LLM Council. Multiple AI models have provided responses to a user's question, and then ranked each other's responses.

Original Question: %s

STAGE 1 - Individual Responses:
%s

STAGE 2 - Peer Rankings:
%s

Aggregate ranking across all peers (best first):
%s

Your task as Chairman is to synthesize all of this information into a single, comprehensive, accurate answer to the user's original question. Consider:
- The individual responses and their insights
- The peer rankings and what they reveal about response quality
- Any patterns of agreement or disagreement

Provide a clear, well-reasoned final answer that represents the council's collective wisdom:`,
		userQuery, stage1Text.String(), stage2Text.String(), aggregateText.String())

	messages := []ChatMessage{{Role: "user", Content: chairmanPrompt}}
	response := c.client.QueryModel(ctx, c.cfg.ChairmanModel, messages, c.cfg.QueryTimeout)
	if !response.OK() {
		return nil, &StageError{Stage: 3, Msg: fmt.Sprintf("chairman model query failed: %v", response.Err)}
	}

	return &Stage3Response{
		Model:    c.cfg.ChairmanModel,
		Response: response.Content,
	}, nil
}

// GenerateConversationTitle summarizes the user's first message into a short
// title using the fast title model.
func (c *Council) GenerateConversationTitle(ctx context.Context, userQuery string) (string, error) {
	titlePrompt := fmt.Sprintf(`Generate a very short title (3-5 words maximum) that summarizes the following question.
The title should be concise and descriptive. Do not use quotes or punctuation in the title.

Question: %s

Title:`, userQuery)

	messages := []ChatMessage{{Role: "user", Content: titlePrompt}}
	response := c.client.QueryModel(ctx, c.cfg.TitleModel, messages, c.cfg.TitleTimeout)
	if !response.OK() {
		return "", fmt.Errorf("title generation failed: %w", response.Err)
	}

	title := strings.TrimSpace(response.Content)
	title = strings.Trim(title, "\"'")
	if len(title) > 50 {
		title = title[:47] + "..."
	}
	return title, nil
}

type titleOutcome struct {
	title string
	err   error
}

// TitleTask is the detached handle for the title-generation side task. It is
// joined at most once, after stage 3 and before final persistence; if the
// pipeline errors first the task is simply abandoned and finishes into its
// buffered channel.
type TitleTask struct {
	result chan titleOutcome
}

// StartTitleTask kicks off title generation concurrently with the three
// stages.
func (c *Council) StartTitleTask(ctx context.Context, userQuery string) *TitleTask {
	task := &TitleTask{result: make(chan titleOutcome, 1)}
	go func() {
		title, err := c.GenerateConversationTitle(ctx, userQuery)
		task.result <- titleOutcome{title: title, err: err}
	}()
	return task
}

// Wait blocks until the title is ready and returns it.
func (t *TitleTask) Wait() (string, error) {
	outcome := <-t.result
	return outcome.title, outcome.err
}

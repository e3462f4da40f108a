package usecase

import (
	"fmt"

	"github.com/cosyhq/regcheck/internal/core/domain"
)

const labelingSystemPrompt = `You are a cosmetics regulatory compliance reviewer.
You assess product label text against the regulatory passages provided as context.
Answer with a single strict JSON object, no markdown.`

const ingredientsSystemPrompt = `You are a cosmetics regulatory compliance reviewer.
You assess a product ingredient list against restricted-substance records and regulatory passages provided as context.
Answer with a single strict JSON object, no markdown.`

const reflectionSystemPrompt = `You are a strict reviewer of automated compliance assessments.
Answer with a single strict JSON object, no markdown.`

func buildLabelingPrompt(market, contextBlock, labelText string) string {
	return fmt.Sprintf(`Assess the following product label text for the %s market.

Rules:
- Use only the regulatory context below as evidence; cite the source of each finding in its reason.
- risk and overall_risk must be one of LOW, MEDIUM, HIGH.
- overall_risk must not be LOW if any finding is MEDIUM or HIGH.
- Answer in the language of the label text.

Return JSON with keys:
overall_risk (string), findings (array of {snippet, risk, reason, suggested_rewrite}), notes (array of strings), formatted_text (string: the label text with risky spans marked).

Regulatory context:
%s

Label text:
%s`, market, contextBlock, labelText)
}

func buildIngredientsPrompt(market, restrictedCtx, regulatoryCtx, ingredientsText string) string {
	return fmt.Sprintf(`Assess the following cosmetic ingredient list for the %s market.

Rules:
- Restriction-list records below are direct evidence that an ingredient is flagged; regulatory text gives the applicable conditions.
- severity and overall_risk must be one of LOW, MEDIUM, HIGH.
- overall_risk must not be LOW if any detail is MEDIUM or HIGH.
- Include one detail entry per assessed ingredient.

Return JSON with keys:
overall_risk (string), details (array of {ingredient, regulation, content, action, severity}), notes (array of strings).

Restriction-list records:
%s

Regulatory context:
%s

Ingredient list:
%s`, market, restrictedCtx, regulatoryCtx, ingredientsText)
}

func buildReflectionPrompt(prompt, contextBlock, answer string) string {
	return fmt.Sprintf(`Score the answer below from 1 to 10 against this rubric:
- grounding: every claim is supported by the provided context
- schema: the answer is valid JSON in the requested shape
- specificity: findings cite concrete snippets and sources
- completeness: all relevant risks in the context are covered
- risk consistency: overall_risk is consistent with item risks

Return JSON: {"score": <1-10 integer>, "feedback": "<what to fix>"}.

Original request:
%s

Context provided:
%s

Answer to score:
%s`, prompt, contextBlock, answer)
}

func buildRegeneratePrompt(prompt string, verdict domain.ReflectionVerdict) string {
	return fmt.Sprintf(`%s

A reviewer scored your previous answer %d/10 with this feedback:
%s

Produce a corrected answer in the same JSON schema. Do not mention the review or this feedback in the answer.`,
		prompt, verdict.Score, verdict.Feedback)
}

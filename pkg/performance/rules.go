// Package performance short-circuits the LLM path for queries that can
// be answered instantly: a regex rule engine for conversational
// boilerplate and a semantic cache for repeated questions.
package performance

import (
	"regexp"
	"strings"
)

// Rule is one canned-answer entry. Patterns match against the
// lowercased, trimmed query.
type Rule struct {
	Pattern *regexp.Regexp
	Answer  string
	Tag     string
}

// RuleEngine holds an ordered rule list; the first match wins.
type RuleEngine struct {
	rules []Rule
}

// NewRuleEngine creates an engine loaded with the default rule set.
func NewRuleEngine() *RuleEngine {
	return &RuleEngine{rules: defaultRules()}
}

// AddRule appends a rule. The pattern is compiled case-insensitively;
// a malformed pattern is rejected.
func (e *RuleEngine) AddRule(pattern, answer, tag string) error {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return err
	}
	e.rules = append(e.rules, Rule{Pattern: re, Answer: answer, Tag: tag})
	return nil
}

// Match returns the first matching rule for the query.
func (e *RuleEngine) Match(query string) (Rule, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	for _, rule := range e.rules {
		if rule.Pattern.MatchString(q) {
			return rule, true
		}
	}
	return Rule{}, false
}

func mustRule(pattern, answer, tag string) Rule {
	return Rule{Pattern: regexp.MustCompile("(?i)" + pattern), Answer: answer, Tag: tag}
}

func defaultRules() []Rule {
	return []Rule{
		mustRule(`^(hi|hello|hey|你好|您好|嗨)[!！。.\s]*$`,
			"你好！我是你的智能助手，有什么可以帮你的吗？\nHello! I'm your assistant — how can I help?",
			"greeting"),
		mustRule(`(who are you|你是谁|what are you|介绍.*自己)`,
			"我是一个多智能体助手，由研究、数据分析、写作等专家协作为你服务。\nI'm a multi-agent assistant backed by research, data analysis, and writing specialists.",
			"identity"),
		mustRule(`(clear|清除|清空).*(history|历史|记录)`,
			"好的，我们重新开始。请问有什么可以帮你？\nDone — let's start fresh. What can I do for you?",
			"clear_history"),
		mustRule(`^(thanks|thank you|谢谢|多谢|感谢)[!！。.\s]*$`,
			"不客气！还有其他问题随时问我。\nYou're welcome! Ask me anything else anytime.",
			"thanks"),
		mustRule(`^(bye|goodbye|再见|拜拜)[!！。.\s]*$`,
			"再见！期待下次为你服务。\nGoodbye! Talk to you next time.",
			"goodbye"),
		mustRule(`^(help|帮助|你能做什么|你会什么|what can you do)`,
			"我可以帮你：检索最新资讯、分析业务数据、查询数据库、撰写和整理内容。直接提问即可。\nI can research fresh information, analyze business data, query databases, and write up results — just ask.",
			"help"),
	}
}

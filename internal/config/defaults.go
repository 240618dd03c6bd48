package config

// DefaultConfig returns the built-in configuration: the fixed eight-agent roster,
// its coordination rules and all engine defaults applied.
func DefaultConfig() *WarrenConfig {
	cfg := &WarrenConfig{Version: "1.0"}
	if err := cfg.Validate(); err != nil {
		// The built-in roster is static; a failure here is a programming error.
		panic("invalid built-in configuration: " + err.Error())
	}
	return cfg
}

func perf(p float64) *float64 { return &p }

// DefaultAgents returns the fixed roster bootstrapped when warren.yml names no agents.
func DefaultAgents() map[string]Agent {
	return map[string]Agent{
		"navigation_specialist": {
			Name:           "Navigation Specialist",
			Specialization: "navigation",
			Capabilities:   []string{"navigation", "browsing", "url_handling"},
			Performance:    perf(0.92),
			Prompt:         "You navigate the browser: open pages, follow links and report where you ended up.",
			Vocabulary: map[string]int{
				"navigate to": 95,
				"navigate":    90,
				"go to":       90,
				"visit":       85,
				"open":        75,
				"browse":      80,
				"url":         80,
				"website":     70,
				"tab":         65,
				"link":        65,
				"page":        60,
			},
		},
		"research_agent": {
			Name:           "Research Agent",
			Specialization: "research",
			Capabilities:   []string{"research", "analysis", "search", "browsing"},
			Performance:    perf(0.88),
			Prompt:         "You research topics across the web and report findings with sources.",
			Vocabulary: map[string]int{
				"research":         90,
				"find information": 85,
				"search for":       85,
				"investigate":      85,
				"learn about":      80,
				"compare":          75,
				"analyze":          70,
				"sources":          65,
				"information":      60,
			},
		},
		"content_writer": {
			Name:           "Content Writer",
			Specialization: "writing",
			Capabilities:   []string{"writing", "summarization", "editing"},
			Performance:    perf(0.86),
			Prompt:         "You write, rewrite and summarise text in a clear, concise register.",
			Vocabulary: map[string]int{
				"write":     90,
				"rewrite":   85,
				"draft":     85,
				"summarize": 85,
				"summarise": 85,
				"summary":   80,
				"article":   80,
				"blog":      80,
				"email":     75,
				"report":    70,
			},
		},
		"code_assistant": {
			Name:           "Code Assistant",
			Specialization: "coding",
			Capabilities:   []string{"coding", "debugging", "analysis"},
			Performance:    perf(0.90),
			Prompt:         "You write and debug code and explain the change you made.",
			Vocabulary: map[string]int{
				"debug":      90,
				"code":       85,
				"bug":        85,
				"script":     80,
				"program":    80,
				"javascript": 80,
				"python":     80,
				"compile":    80,
				"function":   75,
			},
		},
		"data_extractor": {
			Name:           "Data Extractor",
			Specialization: "data",
			Capabilities:   []string{"data", "extraction", "scraping"},
			Performance:    perf(0.84),
			Prompt:         "You extract structured data from pages and return it as tables.",
			Vocabulary: map[string]int{
				"extract": 90,
				"scrape":  90,
				"csv":     85,
				"table":   75,
				"export":  75,
				"data":    70,
				"collect": 70,
				"prices":  65,
			},
		},
		"shopping_assistant": {
			Name:           "Shopping Assistant",
			Specialization: "shopping",
			Capabilities:   []string{"shopping", "price_comparison", "search"},
			Performance:    perf(0.82),
			Prompt:         "You find products, compare prices and recommend the best deal.",
			Vocabulary: map[string]int{
				"buy":      90,
				"purchase": 90,
				"cheapest": 85,
				"cart":     85,
				"price":    80,
				"deal":     80,
				"product":  70,
				"order":    70,
			},
		},
		"security_guardian": {
			Name:           "Security Guardian",
			Specialization: "security",
			Capabilities:   []string{"security", "privacy", "analysis"},
			Performance:    perf(0.90),
			Prompt:         "You assess pages and requests for security and privacy risks.",
			Vocabulary: map[string]int{
				"phishing":    95,
				"malware":     95,
				"security":    90,
				"privacy":     85,
				"password":    80,
				"tracker":     80,
				"certificate": 80,
				"safe":        65,
			},
		},
		"automation_agent": {
			Name:           "Automation Agent",
			Specialization: "automation",
			Capabilities:   []string{"automation", "forms", "workflow", "navigation"},
			Performance:    perf(0.80),
			Prompt:         "You automate repetitive browser work: fill forms, click through flows, run workflows.",
			Vocabulary: map[string]int{
				"automate": 90,
				"workflow": 85,
				"fill":     80,
				"form":     80,
				"schedule": 75,
				"click":    75,
				"login":    70,
				"repeat":   70,
			},
		},
	}
}

// DefaultRules returns the coordination rule table for the default roster.
// Task type "progress" carries the synthetic steps submitted for autonomous goals.
func DefaultRules() map[string]Rule {
	return map[string]Rule{
		"navigation": {
			Primary:              "navigation_specialist",
			RequiredCapabilities: []string{"navigation", "browsing"},
			Priority:             7,
		},
		"research": {
			Primary:              "research_agent",
			Supporting:           []string{"content_writer", "data_extractor"},
			RequiredCapabilities: []string{"research", "search"},
			Priority:             6,
		},
		"writing": {
			Primary:              "content_writer",
			Supporting:           []string{"research_agent"},
			RequiredCapabilities: []string{"writing", "summarization"},
			Priority:             5,
		},
		"coding": {
			Primary:              "code_assistant",
			RequiredCapabilities: []string{"coding", "debugging"},
			Priority:             6,
		},
		"data": {
			Primary:              "data_extractor",
			Supporting:           []string{"automation_agent"},
			RequiredCapabilities: []string{"data", "extraction"},
			Priority:             5,
		},
		"shopping": {
			Primary:              "shopping_assistant",
			Supporting:           []string{"research_agent", "data_extractor"},
			RequiredCapabilities: []string{"shopping", "price_comparison"},
			Priority:             4,
		},
		"security": {
			Primary:              "security_guardian",
			RequiredCapabilities: []string{"security", "privacy"},
			Priority:             9,
		},
		"automation": {
			Primary:              "automation_agent",
			Supporting:           []string{"navigation_specialist"},
			RequiredCapabilities: []string{"automation", "forms"},
			Priority:             5,
		},
		"progress": {
			Primary:              "research_agent",
			Supporting:           []string{"content_writer"},
			RequiredCapabilities: []string{"research", "analysis", "writing"},
			Priority:             3,
		},
	}
}

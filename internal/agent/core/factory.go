package core

import (
	"context"
	"fmt"
	"log"

	"github.com/brieferhq/briefer/config"
	"github.com/brieferhq/briefer/internal/agent/telemetry"
	"github.com/brieferhq/briefer/internal/cache"
	"github.com/brieferhq/briefer/provider"
	openai_provider "github.com/brieferhq/briefer/provider/openai"
	"github.com/brieferhq/briefer/tools/web_search"
)

// Pipeline bundles the orchestrator with the shared backends the task layer
// also needs.
type Pipeline struct {
	Orchestrator *Orchestrator
	Deep         DeepResearcher
	Cache        cache.Cache
}

// BuildPipeline wires agents, tools and backends from configuration. With an
// LLM key the full stack is used; without one, strict mode refuses to start
// and soft mode degrades to heuristic routing and deterministic composition.
func BuildPipeline(ctx context.Context, cfg *config.Config, tel *telemetry.Telemetry, logger *log.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[AGENT] ", log.LstdFlags)
	}

	var llm provider.ChatProvider
	var background provider.BackgroundProvider
	if cfg.LLM.APIKey != "" {
		client := openai_provider.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Timeout)
		inputRate, outputRate := cfg.LLM.CostPer1KInput, cfg.LLM.CostPer1KOutput
		client.OnUsage(func(model string, promptTokens, completionTokens int64) {
			cost := float64(promptTokens)/1000*inputRate + float64(completionTokens)/1000*outputRate
			tel.RecordLLMUsage(model, promptTokens+completionTokens, cost)
		})
		llm = client
		background = client
	} else if cfg.General.StrictMode {
		return nil, fmt.Errorf("strict mode requires llm.api_key")
	} else {
		logger.Printf("no LLM key configured, using heuristic routing and composition")
	}

	searchKey := ""
	switch web_search.Provider(cfg.Search.Provider) {
	case web_search.SerperProvider:
		searchKey = cfg.Search.SerperAPIKey
	case web_search.BraveProvider:
		searchKey = cfg.Search.BraveAPIKey
	}

	var searchTool *web_search.Tool
	if searchKey != "" {
		searcher, err := web_search.NewWebSearcher(web_search.Provider(cfg.Search.Provider), searchKey)
		if err != nil {
			return nil, fmt.Errorf("search provider: %w", err)
		}
		searchTool = web_search.NewTool(searcher, cfg.Search.MaxResults, nil)
	} else {
		if cfg.General.StrictMode {
			return nil, fmt.Errorf("strict mode requires an api key for search provider %q", cfg.Search.Provider)
		}
		logger.Printf("no search key configured, research runs with empty results")
		searchTool = web_search.NewTool(nil, cfg.Search.MaxResults, nil)
	}

	var store cache.Cache
	if cfg.Storage.Redis.Host != "" {
		redisCache, err := cache.NewRedis(ctx, cfg.Storage.Redis, nil)
		if err != nil {
			if cfg.General.StrictMode {
				return nil, err
			}
			logger.Printf("redis unavailable, falling back to in-memory cache: %v", err)
			store = cache.NewMemory()
		} else {
			store = redisCache
		}
	} else {
		store = cache.NewMemory()
	}

	var deep DeepResearcher
	if background != nil {
		deep = NewDeepClient(background, cfg.LLM.DeepResearchModel, cfg.Tasks.DeepWaitTimeout, nil)
	}

	var classifier Classifier
	var clarifier Clarifier
	if llm != nil {
		classifier = NewLLMClassifier(llm, cfg.LLM.CompletionModel, nil)
		clarifier = NewLLMClarifier(llm, cfg.LLM.CompletionModel, nil)
	} else {
		classifier = HeuristicClassifier{}
	}

	researcher := NewResearchAgent(searchTool, store, deep, cfg.Search.CacheTTL, nil).WithTelemetry(tel)
	composer := NewDocumentComposer(llm, cfg.LLM.CompletionModel, nil)
	executor := NewExecutor(cfg.Retry, nil).WithTelemetry(tel)

	orch := NewOrchestrator(classifier, clarifier, researcher, composer, executor, logger).WithTelemetry(tel)
	return &Pipeline{Orchestrator: orch, Deep: deep, Cache: store}, nil
}

package app

import (
	"multiverse-copilot-backend/internal/config"
	"multiverse-copilot-backend/internal/kb"
	"multiverse-copilot-backend/internal/providers"
	"multiverse-copilot-backend/internal/sim"
	"multiverse-copilot-backend/internal/voice"
)

// App is the application context: every provider and service constructed
// once at startup and handed to the route constructors. There is no cached
// global state; the composition is explicit here.
type App struct {
	Cfg   *config.Config
	Store *kb.Store
	KB    *kb.Service
	Sim   *sim.Service
	Voice *voice.Service
	Agent providers.AgentAutomationProvider
}

// New wires providers (mock or real, per configuration) into the service
// graph
func New(cfg *config.Config) (*App, error) {
	var (
		embedder providers.EmbeddingProvider
		llm      providers.LLMProvider
		speech   providers.SpeechProvider
		agent    providers.AgentAutomationProvider
	)

	if cfg.UseMockProviders {
		embedder = providers.NewMockEmbeddings()
		llm = providers.NewMockLLM()
		speech = providers.NewMockSpeech()
		agent = providers.NewMockAgent()
	} else {
		var err error
		embedder, err = providers.NewGeminiEmbeddings(cfg)
		if err != nil {
			return nil, err
		}
		llm, err = providers.NewGeminiClient(cfg)
		if err != nil {
			return nil, err
		}
		speech = providers.NewSpeechBridge()
		agent = providers.NewAgentClient()
	}

	store, err := kb.NewStore(cfg.KBDBPath, cfg.KBIndexPath)
	if err != nil {
		return nil, err
	}

	kbService := kb.NewService(cfg, store, embedder)
	return &App{
		Cfg:   cfg,
		Store: store,
		KB:    kbService,
		Sim:   sim.NewService(cfg, llm, kbService),
		Voice: voice.NewService(speech),
		Agent: agent,
	}, nil
}

// Close releases the storage handles
func (a *App) Close() error {
	return a.Store.Close()
}

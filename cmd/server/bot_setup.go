package main

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/sirupsen/logrus"

	"github.com/dialoguekeeper/service/internal/config"
	"github.com/dialoguekeeper/service/internal/dialogue"
	"github.com/dialoguekeeper/service/internal/iu"
	"github.com/dialoguekeeper/service/internal/models"
	"github.com/dialoguekeeper/service/internal/nlp"
)

// setupLogging 按配置初始化日志
func setupLogging(cfg *config.Config) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// buildBot 按配置组装并启动机器人
func buildBot(cfg *config.Config) (*dialogue.Bot, error) {
	var scorer nlp.TextScorer
	if cfg.EmbeddingAPIURL != "" {
		vectorizer := nlp.NewHTTPVectorizer("senttran.embedding",
			cfg.EmbeddingAPIURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimension)
		vectorizer.Timeout = cfg.HTTPTimeout
		scorer = nlp.NewVectorTextScorer("senttran.scorer", vectorizer, false)
	}

	bot, err := dialogue.NewBot(cfg.BotID, cfg.BotLanguage, dialogue.Options{
		MaxVerifyNr: cfg.MaxVerifyNr,
		StorageDir:  cfg.StoragePath,
		IU: iu.Options{
			DefaultNLU:    cfg.DefaultNLU,
			ActiveNLUs:    []string{cfg.DefaultNLU},
			Scorer:        scorer,
			RasaServerURL: cfg.RasaServerURL,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := registerDemoDialogue(bot); err != nil {
		return nil, fmt.Errorf("注册示例对话失败: %w", err)
	}

	if err := bot.Start(cfg.RetrainOnStart); err != nil {
		return nil, err
	}
	return bot, nil
}

// registerDemoDialogue 注册示例对话：问候、道别、居住地和随机趣闻
func registerDemoDialogue(bot *dialogue.Bot) error {
	// 取值
	bot.RegisterValue(models.NewValue("COUNTRY_DE").
		AddRegexPattern(`(?i:Deuts\w+)`).
		AddRegexPattern(`(?i:Germa\w+)`))
	bot.RegisterValue(models.NewValue("COUNTRY_FR").
		AddSynonym("Frankreich").
		AddSynonym("France"))
	bot.RegisterValue(models.NewValue("COUNTRY_IT").
		AddSynonym("Italien").
		AddSynonym("Italy"))

	// 实体
	livingCountry := models.NewEntity("living-country", "COUNTRY_DE", "COUNTRY_FR", "COUNTRY_IT")
	livingCountry.Questions = dialogue.DefaultEntityQuestions("living-country", bot.Language)
	bot.RegisterEntity(livingCountry)

	// 意图
	hello := models.NewIntent("hello")
	hello.Action = models.NewNLAction("Hello!", "Hi, nice to see you!")
	bot.RegisterIntent(hello)
	if err := bot.RegisterIntentPhrasePatterns("hello",
		"Hi", "hello", "ahoi", "good morning", "good evening", "good afternoon", "hi there"); err != nil {
		return err
	}

	bye := models.NewIntent("bye")
	bye.Action = models.NewNLAction("Good bye!", "See you later!")
	bot.RegisterIntent(bye)
	if err := bot.RegisterIntentPhrasePatterns("bye",
		"Good bye", "bye", "see you", "until later", "see you later", "I have to go"); err != nil {
		return err
	}

	living := models.NewIntent("living")
	living.Action = models.NewNLAction("So you live in ((living-country))!")
	bot.RegisterIntent(living)
	if err := bot.RegisterIntentPhrasePatterns("living",
		"I live in ((living-country))",
		"I moved to ((living-country))",
		"My home country is ((living-country))",
		"((living-country)) is my home country"); err != nil {
		return err
	}

	funFact := models.NewIntent("fun-fact")
	funFact.Action = &models.FuncAction{
		ActionName: "utter_fun_fact",
		Fn: func(session models.ActionSession) error {
			return session.Dispatcher().Utter(session, gofakeit.Quote())
		},
	}
	bot.RegisterIntent(funFact)
	return bot.RegisterIntentPhrasePatterns("fun-fact",
		"Tell me a fun fact", "tell me something", "surprise me", "I am bored")
}

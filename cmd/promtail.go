package main

import (
	"github.com/ic2hrmk/promtail"
	"github.com/sirupsen/logrus"
)

func (a *App) initLoki() error {
	if a.Config.LokiURL == "" {
		return nil
	}

	identifiers := map[string]string{
		"instanceId": appName,
	}

	promTail, err := promtail.NewJSONv1Client(a.Config.LokiURL, identifiers)
	if err != nil {
		return err
	}

	a.PromTail = promTail
	a.Logger.AddHook(&lokiHook{client: promTail})

	return nil
}

// lokiHook forwards logrus entries to Loki through the promtail
// client.
type lokiHook struct {
	client promtail.Client
}

func (h *lokiHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *lokiHook) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}

	switch entry.Level {
	case logrus.DebugLevel, logrus.TraceLevel:
		h.client.Logf(promtail.Debug, "%s", line)
	case logrus.WarnLevel:
		h.client.Logf(promtail.Warn, "%s", line)
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		h.client.Logf(promtail.Error, "%s", line)
	default:
		h.client.Logf(promtail.Info, "%s", line)
	}

	return nil
}

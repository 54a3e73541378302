// Package policy loads the business-policy documents that govern the
// funding gate and the liability classifier from a hot-reloaded YAML file,
// the way the teacher's internal/config.BillingConfigHolder loads aging
// buckets and risk levels: env/flags pick the file, viper parses it, and an
// fsnotify watch swaps the in-memory snapshot atomically on change so an
// operator can amend the return-code table without a redeploy.
package policy

import (
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// FundingPolicy governs FundingGate.EvaluateCommitGate.
type FundingPolicy struct {
	RecognizedFundingModels []string `mapstructure:"recognizedFundingModels"`
	StrictByDefault         bool     `mapstructure:"strictByDefault"`
}

// ClassificationRule is one row of the liability classification table,
// overridable per deployment (new rails, amended return codes) without
// recompiling the default table baked into internal/liability.
type ClassificationRule struct {
	Rail           string `mapstructure:"rail"`
	Code           string `mapstructure:"code"`
	ErrorOrigin    string `mapstructure:"errorOrigin"`
	LiabilityParty string `mapstructure:"liabilityParty"`
	RecoveryPath   string `mapstructure:"recoveryPath"`
}

// Document is the full policy snapshot.
type Document struct {
	Funding        FundingPolicy
	Classification []ClassificationRule
}

func defaultDocument() Document {
	return Document{
		Funding: FundingPolicy{
			RecognizedFundingModels: []string{"prefund_all", "prefund_taxes", "postfund"},
			StrictByDefault:         false,
		},
	}
}

// Holder serves the current Document, swapped atomically on reload.
type Holder struct {
	current atomic.Value // Document
}

// NewHolder reads path (yaml) if present, falling back to defaults when the
// file does not exist, and watches it for changes for the life of the
// process.
func NewHolder(path string) (*Holder, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	holder := &Holder{}
	holder.current.Store(defaultDocument())

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return holder, nil
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	doc, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(doc)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := unmarshal(v)
		if err != nil {
			log.Printf("[policy] reload failed: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[policy] reloaded from %s", e.Name)
	})

	return holder, nil
}

func unmarshal(v *viper.Viper) (Document, error) {
	var doc Document
	if err := v.UnmarshalKey("funding", &doc.Funding); err != nil {
		return Document{}, err
	}
	if err := v.UnmarshalKey("classification", &doc.Classification); err != nil {
		return Document{}, err
	}
	if len(doc.Funding.RecognizedFundingModels) == 0 {
		doc.Funding = defaultDocument().Funding
	}
	return doc, nil
}

// Get returns the current snapshot.
func (h *Holder) Get() Document {
	if h == nil {
		return defaultDocument()
	}
	v := h.current.Load()
	if v == nil {
		return defaultDocument()
	}
	return v.(Document)
}

// RecognizesFundingModel reports whether model is one of the recognized
// funding models in the current policy.
func (d Document) RecognizesFundingModel(model string) bool {
	model = strings.ToLower(strings.TrimSpace(model))
	for _, m := range d.Funding.RecognizedFundingModels {
		if strings.ToLower(m) == model {
			return true
		}
	}
	return false
}

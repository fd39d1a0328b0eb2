package weights

import (
	"log/slog"
	"strconv"
	"strings"
)

// statFields are the normalization entries that gain one replica per domain.
var statFields = []string{
	"weight",
	"bias",
	"running_mean",
	"running_var",
	"num_batches_tracked",
}

// pretrainedClasses is the classifier width of the standard pretrained
// archives; a differing target width drops the pretrained classifier.
const pretrainedClasses = 1000

// ExpandDomainStats rewrites a single-domain pretrained state dictionary for
// the per-domain normalization layout: every normalization-statistic key
// (under a "bn" layer or a downsample norm) is replicated into one
// "...bns.<d>.<field>" entry per domain, each initialized with identical
// values. Classifier ("fc") entries are dropped when the target class count
// differs from the pretrained archive.
//
// The transform is pure key rewriting; the input dictionary is not modified.
func ExpandDomainStats(sd StateDict, numDomains, numClasses int, logger *slog.Logger) StateDict {
	if logger == nil {
		logger = slog.Default()
	}
	out := sd.Clone()

	for key, val := range sd {
		if !isNormKey(key) {
			continue
		}
		for _, field := range statFields {
			if !strings.HasSuffix(key, field) {
				continue
			}
			prefix := strings.TrimSuffix(key, field)
			for d := 0; d < numDomains; d++ {
				out[domainKey(prefix, d, field)] = val.Clone()
			}
			break
		}
	}

	if numClasses != pretrainedClasses || countClassifierKeys(out) > 1 {
		for key := range out {
			if strings.Contains(key, "fc") {
				logger.Info("dropping pretrained classifier entry", "key", key)
				delete(out, key)
			}
		}
	}

	return out
}

func domainKey(prefix string, domain int, field string) string {
	return prefix + "bns." + strconv.Itoa(domain) + "." + field
}

func isNormKey(key string) bool {
	return strings.Contains(key, "bn") || strings.Contains(key, "downsample.1")
}

func countClassifierKeys(sd StateDict) int {
	count := 0
	for key := range sd {
		if strings.Contains(key, "fc") {
			count++
		}
	}
	return count
}

// TransplantSourceDomain copies every entry held in domain slot 3 into
// domain slot 0, so statistics adapted on the source domain become the
// default slot's statistics. Returns a rewritten copy.
func TransplantSourceDomain(sd StateDict, logger *slog.Logger) StateDict {
	if logger == nil {
		logger = slog.Default()
	}
	out := sd.Clone()
	for key, val := range sd {
		if !strings.Contains(key, "bns.3") {
			continue
		}
		newKey := strings.Replace(key, "bns.3", "bns.0", 1)
		logger.Info("transplanting domain statistics", "from", key, "to", newKey)
		out[newKey] = val.Clone()
	}
	return out
}

package cli

import (
	"path/filepath"

	"go.uber.org/zap"

	"github.com/lukemcguire/linkguard/config"
	"github.com/lukemcguire/linkguard/extract"
	"github.com/lukemcguire/linkguard/verifier"
)

// collectRecords extracts the links of every file and turns them into
// verifier input, in file order then line order. Origins are relative to
// root. Files that cannot be read are skipped with a warning.
func collectRecords(root string, files []string, cfg *config.Config, log *zap.Logger) []verifier.LinkRecord {
	var records []verifier.LinkRecord
	for _, path := range files {
		links, err := extract.FromFile(path)
		if err != nil {
			log.Warn("skipping unreadable file", zap.String("path", path), zap.Error(err))
			continue
		}

		origin := path
		if rel, relErr := filepath.Rel(root, path); relErr == nil {
			origin = filepath.ToSlash(rel)
		}

		for _, link := range links {
			if cfg.ShouldExcludeURL(link.URL) {
				log.Debug("excluded url", zap.String("url", link.URL), zap.String("origin", origin))
				continue
			}
			records = append(records, verifier.LinkRecord{Origin: origin, URL: link.URL, Line: link.Line})
		}
	}
	return records
}

package feeds

import (
	"fmt"

	"feedrace/src/interfaces"
	"feedrace/src/logger"
	"feedrace/src/models"
)

// -----------------------------------------------------------------------------

// Factory creates feed adapter instances based on configuration
type Factory struct {
	Name   string
	Config *models.MConfig
	Logger *logger.Logger
	Deps   interfaces.FeedDeps
}

// -----------------------------------------------------------------------------

// NewFactory creates a new feed Factory instance
func NewFactory(config *models.MConfig, log *logger.Logger, deps interfaces.FeedDeps) *Factory {
	return &Factory{
		Name:   "FeedFactory",
		Config: config,
		Logger: log,
		Deps:   deps,
	}
}

// -----------------------------------------------------------------------------

// CreateFeed creates a feed adapter by name using the dynamic registry.
func (f *Factory) CreateFeed(name string) (interfaces.IFeed, error) {
	var sourceConfig *models.MSourceConfig
	for _, sc := range f.Config.Sources {
		if sc.Name == name {
			sourceConfig = sc
			break
		}
	}
	if sourceConfig == nil {
		return nil, fmt.Errorf("source config '%s' not found", name)
	}

	constructor, err := GetConstructor(name)
	if err != nil {
		return nil, err // Returns "unknown feed type: ..." error
	}

	feed, err := constructor(sourceConfig, f.Logger, f.Deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed %s: %w", name, err)
	}

	f.Logger.Info("%s : successfully created feed %s of kind %s", f.Name, name, sourceConfig.Kind)
	return feed, nil
}

// -----------------------------------------------------------------------------

// CreateAllFeeds creates every feed adapter from configuration. A source that
// fails to construct is skipped with an error log; at least one must succeed.
func (f *Factory) CreateAllFeeds() ([]interfaces.IFeed, error) {
	var feeds []interfaces.IFeed

	for _, sc := range f.Config.Sources {
		feed, err := f.CreateFeed(sc.Name)
		if err != nil {
			f.Logger.Error("%s : skipping source %s: %v", f.Name, sc.Name, err)
			continue
		}
		feeds = append(feeds, feed)
	}

	if len(feeds) == 0 {
		return nil, fmt.Errorf("no valid feed adapters were initialized from configuration")
	}
	return feeds, nil
}

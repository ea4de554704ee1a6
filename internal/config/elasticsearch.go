package config

import (
	"os"
)

// ElasticsearchConfig содержит конфигурацию для подключения к Elasticsearch.
// Пустой URL отключает поиск через индекс, используется SQL.
type ElasticsearchConfig struct {
	URL        string
	Index      string
	Username   string
	Password   string
	MaxRetries int
}

// LoadElasticsearchConfig загружает конфигурацию Elasticsearch из переменных окружения
func LoadElasticsearchConfig() ElasticsearchConfig {
	return ElasticsearchConfig{
		URL:        os.Getenv("ELASTICSEARCH_URL"),
		Index:      getEnv("ELASTICSEARCH_INDEX", "venues"),
		Username:   os.Getenv("ELASTICSEARCH_USERNAME"),
		Password:   os.Getenv("ELASTICSEARCH_PASSWORD"),
		MaxRetries: getEnvInt("ELASTICSEARCH_MAX_RETRIES", 3),
	}
}

// Enabled reports whether a search cluster is configured
func (c ElasticsearchConfig) Enabled() bool {
	return c.URL != ""
}

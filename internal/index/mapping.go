package index

// indexMapping is the schema created by EnsureSchema. raw_properties stays a
// dynamic object.
const indexMapping = `{
  "mappings": {
    "properties": {
      "id":             {"type": "keyword"},
      "name":           {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
      "description":    {"type": "text"},
      "municipality":   {"type": "keyword"},
      "territory":      {"type": "keyword"},
      "country":        {"type": "keyword"},
      "resource_type":  {"type": "keyword"},
      "source_dataset": {"type": "keyword"},
      "detail_url":     {"type": "keyword"},
      "category":       {"type": "keyword"},
      "location":       {"type": "geo_point"},
      "geohash":        {"type": "keyword"}
    }
  }
}`

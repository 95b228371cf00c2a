// Package jsonl parses JSON Lines split descriptors. This parser uses https://github.com/tidwall/gjson to process data, and supports field names formatted as gjson paths.
package jsonl

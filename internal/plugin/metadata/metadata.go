// Package metadata extracts PluginMetadata from a WebAssembly binary
// (spec.md §4.9 / C10), applying three strategies in order — WASM
// custom sections, an embedded JSON manifest, path-based inference.
// A non-empty manifest field replaces what the custom sections set,
// whether or not that value was still the default; path-based
// inference only adds categories and capabilities.
package metadata

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/naoina/toml"
)

// Metadata is the normalized plugin descriptor every strategy
// contributes to.
type Metadata struct {
	Name             string
	Version          string
	Description      string
	Author           string
	License          string
	Homepage         string
	Repository       string
	Keywords         []string
	Categories       []string
	Dependencies     map[string]string // plugin id -> semver requirement
	Capabilities     []string
	MinNexusVersion  string
	MaxNexusVersion  string
}

const (
	defaultVersion         = "0.1.0"
	defaultDescription     = "WebAssembly plugin"
	defaultAuthor          = "Unknown"
	defaultLicense         = "Unknown"
	maxDescriptionBytes    = 1000
	manifestStartMarker    = "NEXUS_PLUGIN_MANIFEST_START"
	manifestEndMarker      = "NEXUS_PLUGIN_MANIFEST_END"
)

// Extract runs all three strategies against content (the raw plugin
// file bytes) and path (its filesystem location, used for the
// filename-stem/parent-directory inference), then normalizes the
// result.
func Extract(content []byte, path string) Metadata {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	md := Metadata{
		Name:            stem,
		Version:         defaultVersion,
		Description:     defaultDescription,
		Author:          defaultAuthor,
		License:         defaultLicense,
		Dependencies:    map[string]string{},
		MinNexusVersion: defaultVersion,
	}

	if sections, err := parseWasmCustomSections(content); err == nil {
		applyFlat(&md, sections)
	}

	if manifest, ok := extractEmbeddedManifest(content); ok {
		applyManifest(&md, manifest)
	}

	applyPathInference(&md, path)
	normalize(&md)
	return md
}

// applyFlat merges a flat string map (as produced by the WASM custom
// section walk) into md, following apply_wasm_metadata's field-by-field
// precedence: present and non-empty overrides the current value.
func applyFlat(md *Metadata, flat map[string]string) {
	if v, ok := flat["name"]; ok && v != "" {
		md.Name = v
	}
	if v, ok := flat["version"]; ok && v != "" {
		md.Version = v
	}
	if v, ok := flat["description"]; ok {
		md.Description = v
	}
	if v, ok := flat["author"]; ok {
		md.Author = v
	}
	if v, ok := flat["license"]; ok {
		md.License = v
	}
	if v, ok := flat["homepage"]; ok {
		md.Homepage = v
	}
	if v, ok := flat["repository"]; ok {
		md.Repository = v
	}
	if v, ok := flat["keywords"]; ok {
		md.Keywords = splitCSV(v)
	}
	if v, ok := flat["categories"]; ok {
		md.Categories = splitCSV(v)
	}
	if v, ok := flat["capabilities"]; ok {
		md.Capabilities = splitCSV(v)
	}
	if v, ok := flat["min_nexus_version"]; ok {
		md.MinNexusVersion = v
	}
	if v, ok := flat["max_nexus_version"]; ok {
		md.MaxNexusVersion = v
	}
	for k, v := range flat {
		if dep, ok := strings.CutPrefix(k, "depends."); ok {
			md.Dependencies[dep] = v
		}
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// extractEmbeddedManifest looks for a marker-delimited JSON block
// (spec.md §4.9 strategy 2) and decodes it as a flat metadata map.
func extractEmbeddedManifest(content []byte) (map[string]any, bool) {
	start := strings.Index(string(content), manifestStartMarker)
	if start < 0 {
		return nil, false
	}
	start += len(manifestStartMarker)
	rest := content[start:]
	end := strings.Index(string(rest), manifestEndMarker)
	if end < 0 {
		return nil, false
	}
	block := rest[:end]

	var obj map[string]any
	if err := json.Unmarshal(block, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

func applyManifest(md *Metadata, obj map[string]any) {
	str := func(k string) (string, bool) {
		v, ok := obj[k].(string)
		return v, ok && v != ""
	}
	if v, ok := str("name"); ok {
		md.Name = v
	}
	if v, ok := str("version"); ok {
		md.Version = v
	}
	if v, ok := str("description"); ok {
		md.Description = v
	}
	if v, ok := str("author"); ok {
		md.Author = v
	}
	if v, ok := str("license"); ok {
		md.License = v
	}
	if v, ok := str("homepage"); ok {
		md.Homepage = v
	}
	if v, ok := str("repository"); ok {
		md.Repository = v
	}
	if v, ok := str("min_nexus_version"); ok {
		md.MinNexusVersion = v
	}
	if v, ok := str("max_nexus_version"); ok {
		md.MaxNexusVersion = v
	}
	if arr := stringArray(obj["keywords"]); len(arr) > 0 {
		md.Keywords = arr
	}
	if arr := stringArray(obj["categories"]); len(arr) > 0 {
		md.Categories = arr
	}
	if arr := stringArray(obj["capabilities"]); len(arr) > 0 {
		md.Capabilities = arr
	}
	if deps, ok := obj["dependencies"].(map[string]any); ok {
		for k, v := range deps {
			if s, ok := v.(string); ok {
				md.Dependencies[k] = s
			}
		}
	}
}

func stringArray(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// applyPathInference derives a category from the parent directory name
// and capabilities from substrings of the plugin's name (spec.md §4.9
// strategy 3).
func applyPathInference(md *Metadata, path string) {
	dir := filepath.Base(filepath.Dir(path))
	switch dir {
	case "system", "core":
		md.Categories = append(md.Categories, "system")
	case "utility", "utils":
		md.Categories = append(md.Categories, "utility")
	case "network", "net":
		md.Categories = append(md.Categories, "network")
	case "security", "sec":
		md.Categories = append(md.Categories, "security")
	case "development", "dev":
		md.Categories = append(md.Categories, "development")
	}

	name := strings.ToLower(md.Name)
	add := func(substr, capability string) {
		if strings.Contains(name, substr) {
			md.Capabilities = append(md.Capabilities, capability)
		}
	}
	add("compress", "compression")
	add("zip", "compression")
	add("crypt", "cryptography")
	add("hash", "cryptography")
	add("network", "network")
	add("http", "network")
	add("fs", "filesystem")
	add("file", "filesystem")
}

// normalize applies spec.md §4.9's post-merge rules: invalid semver
// substitution, dedup+sort of keyword/category/capability lists, and
// description truncation.
func normalize(md *Metadata) {
	if md.Name == "" {
		md.Name = "unknown"
	}
	if !looksLikeSemver(md.Version) {
		md.Version = defaultVersion
	}
	if !looksLikeSemver(md.MinNexusVersion) {
		md.MinNexusVersion = defaultVersion
	}
	if md.MaxNexusVersion != "" && !looksLikeSemver(md.MaxNexusVersion) {
		md.MaxNexusVersion = ""
	}

	md.Keywords = dedupSorted(md.Keywords)
	md.Categories = dedupSorted(md.Categories)
	md.Capabilities = dedupSorted(md.Capabilities)

	if len(md.Description) > maxDescriptionBytes {
		md.Description = md.Description[:maxDescriptionBytes-3] + "..."
	}
}

func looksLikeSemver(s string) bool {
	parts := strings.SplitN(s, "-", 2)
	nums := strings.Split(parts[0], ".")
	if len(nums) != 3 {
		return false
	}
	for _, n := range nums {
		if n == "" {
			return false
		}
		for _, r := range n {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

func dedupSorted(in []string) []string {
	if len(in) == 0 {
		return in
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// parseWasmCustomSections walks a WASM binary's section table,
// dispatching custom sections (type 0) by name per spec.md §4.9
// strategy 1.
func parseWasmCustomSections(content []byte) (map[string]string, error) {
	out := map[string]string{}
	if len(content) < 8 || string(content[0:4]) != "\x00asm" {
		return out, nil
	}

	offset := 8
	for offset < len(content) {
		sectionType := content[offset]
		offset++

		size, n, err := readLEB128(content[offset:])
		if err != nil {
			return out, err
		}
		offset += n

		if offset+size > len(content) {
			break
		}
		if sectionType == 0 {
			section := content[offset : offset+size]
			parseCustomSection(section, out)
		}
		offset += size
	}
	return out, nil
}

func parseCustomSection(data []byte, out map[string]string) {
	if len(data) == 0 {
		return
	}
	nameLen, n, err := readLEB128(data)
	if err != nil || n+nameLen > len(data) {
		return
	}
	name := string(data[n : n+nameLen])
	payload := data[n+nameLen:]

	switch {
	case name == "nexus-plugin" || name == "plugin-metadata" || name == "wasm-metadata":
		parseMetadataPayload(payload, out)
	case name == "name":
		out["name"] = strings.TrimSpace(string(payload))
	case name == "producers":
		parseProducersSection(payload, out)
	case strings.HasPrefix(name, "nexus."):
		out[strings.TrimPrefix(name, "nexus.")] = strings.TrimSpace(string(payload))
	case strings.Contains(name, "meta") || strings.Contains(name, "info"):
		parseKeyValue(string(payload), out)
	}
}

// parseMetadataPayload tries JSON, then TOML, then line-delimited
// key=value, stopping at the first format that parses (spec.md §4.9).
// Array values are joined with commas so list fields split back apart.
func parseMetadataPayload(payload []byte, out map[string]string) {
	flatten := func(v any) string {
		arr, ok := v.([]any)
		if !ok {
			return fmt.Sprint(v)
		}
		parts := make([]string, len(arr))
		for i, e := range arr {
			parts[i] = fmt.Sprint(e)
		}
		return strings.Join(parts, ",")
	}

	var asJSON map[string]any
	if json.Unmarshal(payload, &asJSON) == nil {
		for k, v := range asJSON {
			out[k] = flatten(v)
		}
		return
	}

	var asTOML map[string]any
	if toml.Unmarshal(payload, &asTOML) == nil && len(asTOML) > 0 {
		for k, v := range asTOML {
			out[k] = flatten(v)
		}
		return
	}

	parseKeyValue(string(payload), out)
}

func parseKeyValue(text string, out map[string]string) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if key != "" && value != "" {
			out[key] = value
		}
	}
}

// parseProducersSection decodes the WebAssembly producers-section
// structure: field_count, then per field a name and a list of
// (name, version) value pairs, all LEB128 length-prefixed.
func parseProducersSection(payload []byte, out map[string]string) {
	if len(payload) == 0 {
		return
	}
	fieldCount, offset, err := readLEB128(payload)
	if err != nil {
		return
	}

	for i := 0; i < fieldCount && offset < len(payload); i++ {
		fieldNameLen, n, err := readLEB128(payload[offset:])
		if err != nil || offset+n+fieldNameLen > len(payload) {
			return
		}
		offset += n
		fieldName := string(payload[offset : offset+fieldNameLen])
		offset += fieldNameLen

		if offset >= len(payload) {
			return
		}
		valueCount, n, err := readLEB128(payload[offset:])
		if err != nil {
			return
		}
		offset += n

		values := make([]string, 0, valueCount)
		for j := 0; j < valueCount && offset < len(payload); j++ {
			nameLen, n, err := readLEB128(payload[offset:])
			if err != nil || offset+n+nameLen > len(payload) {
				return
			}
			offset += n
			name := string(payload[offset : offset+nameLen])
			offset += nameLen

			if offset >= len(payload) {
				return
			}
			versionLen, n, err := readLEB128(payload[offset:])
			if err != nil || offset+n+versionLen > len(payload) {
				return
			}
			offset += n
			version := string(payload[offset : offset+versionLen])
			offset += versionLen

			values = append(values, name+" "+version)
		}
		if len(values) > 0 {
			out["producer_"+fieldName] = strings.Join(values, ", ")
		}
	}
}

// readLEB128 decodes an unsigned LEB128 integer from the front of data,
// returning the value and the number of bytes consumed. It fails on
// truncation (no terminal byte within 10 bytes, per the 64-bit bound)
// or overflow past that bound.
func readLEB128(data []byte) (value int, consumed int, err error) {
	if len(data) == 0 {
		return 0, 0, fmt.Errorf("leb128: empty input")
	}
	var result uint64
	var shift uint
	for i := 0; i < 10 && i < len(data); i++ {
		b := data[i]
		result |= uint64(b&0x7F) << shift
		consumed++
		if b&0x80 == 0 {
			return int(result), consumed, nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("leb128: truncated or value too large")
}

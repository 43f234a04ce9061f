package scene

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SceneInfo represents a discovered scene with its metadata
type SceneInfo struct {
	ID          string `json:"id"`          // Unique identifier
	Name        string `json:"name"`        // Scene name
	DisplayName string `json:"displayName"` // UI display name
	Description string `json:"description"` // Optional description
	Group       string `json:"group"`       // Grouping category
	Type        string `json:"type"`        // "builtin" or "script"
	FilePath    string `json:"filePath"`    // Path to the script file (script type only)
	Variant     string `json:"variant"`     // Variant name (optional)
}

// SceneGroup represents a group of related scenes
type SceneGroup struct {
	Name   string      `json:"name"`
	Scenes []SceneInfo `json:"scenes"`
}

// ScenesResponse represents the complete response for /api/scenes
type ScenesResponse struct {
	Groups []SceneGroup `json:"groups"`
}

const (
	builtinGroup = "Built-in Scenes"
	scriptGroup  = "Script Scenes"

	// ScriptExt is the file extension of scene scripts
	ScriptExt = ".zy"
	// ScriptIDPrefix marks scene IDs that refer to script files
	ScriptIDPrefix = "script:"
)

// ScenesDir returns the first scenes directory found relative to the working directory, or ""
func ScenesDir() string {
	for _, path := range []string{"scenes", "../scenes"} {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return path
		}
	}
	return ""
}

// ListScriptScenes scans the scenes directory and returns discovered scene scripts
func ListScriptScenes() ([]SceneInfo, error) {
	scenesDir := ScenesDir()
	if scenesDir == "" {
		return []SceneInfo{}, nil
	}
	return ListScriptScenesIn(scenesDir)
}

// ListScriptScenesIn returns the scene scripts in dir sorted by display name
func ListScriptScenesIn(dir string) ([]SceneInfo, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*"+ScriptExt))
	if err != nil {
		return nil, fmt.Errorf("failed to scan scenes directory: %w", err)
	}

	scenes := []SceneInfo{}
	for _, filePath := range files {
		sceneInfo, err := ParseScriptMetadata(filePath)
		if err != nil {
			// Keep the fallback metadata rather than hiding the script
			fmt.Printf("Warning: failed to parse metadata for %s: %v\n", filePath, err)
		}
		scenes = append(scenes, sceneInfo)
	}

	sort.Slice(scenes, func(i, j int) bool {
		return scenes[i].DisplayName < scenes[j].DisplayName
	})

	return scenes, nil
}

// ParseScriptMetadata extracts metadata from the leading ";;" comments of a scene script
func ParseScriptMetadata(filePath string) (SceneInfo, error) {
	filename := filepath.Base(filePath)
	nameWithoutExt := strings.TrimSuffix(filename, filepath.Ext(filename))

	sceneInfo := SceneInfo{
		ID:          ScriptIDPrefix + nameWithoutExt,
		Name:        titleCase(nameWithoutExt),
		DisplayName: titleCase(nameWithoutExt),
		Group:       scriptGroup,
		Type:        "script",
		FilePath:    filePath,
	}

	file, err := os.Open(filePath)
	if err != nil {
		return sceneInfo, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		// Metadata lives in the header only
		if !strings.HasPrefix(line, ";") {
			break
		}

		content := strings.TrimSpace(strings.TrimLeft(line, ";"))
		key, value, found := strings.Cut(content, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.TrimSpace(key) {
		case "Scene":
			sceneInfo.Name = value
		case "Variant":
			sceneInfo.Variant = value
		case "Description":
			sceneInfo.Description = value
		case "Group":
			sceneInfo.Group = value
		}
	}

	if sceneInfo.Variant != "" {
		sceneInfo.DisplayName = fmt.Sprintf("%s - %s", sceneInfo.Name, sceneInfo.Variant)
	} else {
		sceneInfo.DisplayName = sceneInfo.Name
	}

	return sceneInfo, scanner.Err()
}

// BuiltinScenes returns metadata for the registered scenes
func BuiltinScenes() []SceneInfo {
	var scenes []SceneInfo
	for _, name := range BuiltinNames() {
		b := builtins[name]
		scenes = append(scenes, SceneInfo{
			ID:          b.name,
			Name:        b.displayName,
			DisplayName: b.displayName,
			Description: b.description,
			Group:       builtinGroup,
			Type:        "builtin",
		})
	}
	return scenes
}

// ListAllScenes returns both built-in and script scenes, grouped by category
func ListAllScenes() (ScenesResponse, error) {
	var response ScenesResponse

	scriptScenes, err := ListScriptScenes()
	if err != nil {
		return response, fmt.Errorf("failed to list script scenes: %w", err)
	}

	groupMap := make(map[string][]SceneInfo)
	for _, s := range append(BuiltinScenes(), scriptScenes...) {
		groupMap[s.Group] = append(groupMap[s.Group], s)
	}

	// Built-in first, then alphabetical
	var groupNames []string
	for groupName := range groupMap {
		if groupName != builtinGroup {
			groupNames = append(groupNames, groupName)
		}
	}
	sort.Strings(groupNames)

	if group, exists := groupMap[builtinGroup]; exists {
		response.Groups = append(response.Groups, SceneGroup{Name: builtinGroup, Scenes: group})
	}
	for _, groupName := range groupNames {
		response.Groups = append(response.Groups, SceneGroup{Name: groupName, Scenes: groupMap[groupName]})
	}

	return response, nil
}

// titleCase converts a filename-style string to title case
// e.g., "cornell-empty" -> "Cornell Empty"
func titleCase(s string) string {
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "_", " ")

	words := strings.Fields(s)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
	}

	return strings.Join(words, " ")
}

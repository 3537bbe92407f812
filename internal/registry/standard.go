// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"embed"
	"fmt"

	"github.com/pdiddy/design-engine/pkg/types"
)

//go:embed prompts/*.md
var promptFS embed.FS

// customPriorityBase is the priority of the first custom kind; later
// custom kinds follow in definition order.
const customPriorityBase = 100

// standardSpec is the data behind one built-in descriptor. Keyword tables
// are kept here, away from matching code, so they can be tuned alone.
type standardSpec struct {
	kind              types.ModuleKind
	name              string
	icon              string
	priority          int
	keywords          []string
	defaultApplicable bool
}

var standardSpecs = []standardSpec{
	{
		kind:     types.KindFrontend,
		name:     "Frontend",
		icon:     "browser",
		priority: 10,
		keywords: []string{
			"frontend", "front-end", "front end", "ui", "user interface", "web app", "web page",
			"browser", "react", "vue", "angular", "svelte", "next.js", "css", "html",
			"前端", "界面", "页面", "用户界面",
		},
	},
	{
		kind:     types.KindMobile,
		name:     "Mobile",
		icon:     "device-mobile",
		priority: 20,
		keywords: []string{
			"mobile", "ios", "android", "react native", "flutter", "swiftui", "kotlin",
			"smartphone", "tablet",
			"移动端", "移动", "手机", "安卓",
		},
	},
	{
		kind:     types.KindServerAPI,
		name:     "Server API",
		icon:     "plug",
		priority: 30,
		keywords: []string{
			"api", "rest", "restful", "graphql", "grpc", "endpoint", "endpoints", "http",
			"webhook", "openapi",
			"接口", "应用程序接口",
		},
	},
	{
		kind:     types.KindServerLogic,
		name:     "Server Logic",
		icon:     "gear",
		priority: 40,
		keywords: []string{
			"business logic", "logic", "service", "services", "workflow", "domain",
			"backend", "back-end", "rules",
			"业务逻辑", "逻辑", "服务", "后端",
		},
		defaultApplicable: true,
	},
	{
		kind:     types.KindServerDatabase,
		name:     "Server Database",
		icon:     "database",
		priority: 50,
		keywords: []string{
			"database", "db", "data model", "data models", "schema", "sql", "postgresql",
			"postgres", "mysql", "sqlite", "mongodb", "redis", "persistence", "storage",
			"数据库", "数据模型", "存储",
		},
	},
	{
		kind:     types.KindTesting,
		name:     "Testing",
		icon:     "beaker",
		priority: 60,
		keywords: []string{
			"test", "tests", "testing", "qa", "quality assurance", "e2e", "acceptance",
			"测试", "质量保证",
		},
		defaultApplicable: true,
	},
}

// standardDescriptors builds the built-in descriptors with their embedded
// prompt templates.
func standardDescriptors() (map[types.ModuleKind]types.ModuleDescriptor, error) {
	out := make(map[types.ModuleKind]types.ModuleDescriptor, len(standardSpecs))
	for _, s := range standardSpecs {
		prompt, err := promptFS.ReadFile("prompts/" + string(s.kind) + ".md")
		if err != nil {
			return nil, fmt.Errorf("reading prompt for %s: %w", s.kind, err)
		}
		out[s.kind] = types.ModuleDescriptor{
			Kind:           s.kind,
			Name:           s.name,
			PromptTemplate: string(prompt),
			Detection: &types.DetectionRule{
				Keywords:          s.keywords,
				DefaultApplicable: s.defaultApplicable,
			},
			Icon:     s.icon,
			Priority: s.priority,
		}
	}
	return out, nil
}

func customPromptTemplate() string {
	b, err := promptFS.ReadFile("prompts/custom.md")
	if err != nil {
		// The file is embedded at build time.
		panic(err)
	}
	return string(b)
}

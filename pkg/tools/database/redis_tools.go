package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	toolutils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"github.com/cadenza-chat/cadenza/pkg/tools"
)

func init() {
	tools.Register(tools.ToolDefinition{
		ID:          "redis_command",
		Name:        "Redis Command",
		Description: "Execute a Redis command",
		Category:    tools.CategoryDatabase,
		Dangerous:   true, // Redis commands can modify data
	}, NewRedisCommandTool)

	tools.Register(tools.ToolDefinition{
		ID:          "redis_keys",
		Name:        "Redis Keys",
		Description: "List Redis keys matching a pattern",
		Category:    tools.CategoryDatabase,
		Dangerous:   false,
	}, NewRedisKeysTool)
}

type redisConnInput struct {
	Host     string `json:"host"`
	Port     int    `json:"port,omitempty"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
}

func openRedis(in redisConnInput) *redis.Client {
	port := in.Port
	if port <= 0 {
		port = 6379
	}
	return redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", in.Host, port),
		Password:    in.Password,
		DB:          in.DB,
		DialTimeout: 10 * time.Second,
	})
}

func redisConnParams() map[string]*schema.ParameterInfo {
	return map[string]*schema.ParameterInfo{
		"host":     {Type: schema.String, Required: true, Desc: "Redis server host"},
		"port":     {Type: schema.Integer, Required: false, Desc: "Redis server port (default: 6379)"},
		"password": {Type: schema.String, Required: false, Desc: "Redis password"},
		"db":       {Type: schema.Integer, Required: false, Desc: "Redis database number (default: 0)"},
	}
}

type redisCommandInput struct {
	redisConnInput
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

func NewRedisCommandTool(tc *tools.ToolContext) tool.InvokableTool {
	params := redisConnParams()
	params["command"] = &schema.ParameterInfo{Type: schema.String, Required: true, Desc: "Redis command (e.g., GET, SET, HGET)"}
	params["args"] = &schema.ParameterInfo{Type: schema.Array, Required: false, Desc: "Command arguments", ElemInfo: &schema.ParameterInfo{Type: schema.String}}

	return toolutils.NewTool(&schema.ToolInfo{
		Name:        "redis_command",
		Desc:        "Execute a Redis command. Supports GET, SET, HGET, HSET, LPUSH, RPUSH, LRANGE, SADD, SMEMBERS, etc.",
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}, func(ctx context.Context, input *redisCommandInput) (string, error) {
		rdb := openRedis(input.redisConnInput)
		defer rdb.Close()

		args := make([]interface{}, 0, len(input.Args)+1)
		args = append(args, input.Command)
		for _, arg := range input.Args {
			args = append(args, arg)
		}

		result, err := rdb.Do(ctx, args...).Result()
		if err != nil {
			if err == redis.Nil {
				return "(nil)", nil
			}
			return "", fmt.Errorf("command failed: %w", err)
		}

		return fmt.Sprintf("Command: %s %s\nResult: %s", input.Command, strings.Join(input.Args, " "), formatRedisResult(result)), nil
	})
}

type redisKeysInput struct {
	redisConnInput
	Pattern string `json:"pattern"`
	Limit   int    `json:"limit,omitempty"`
}

func NewRedisKeysTool(tc *tools.ToolContext) tool.InvokableTool {
	params := redisConnParams()
	params["pattern"] = &schema.ParameterInfo{Type: schema.String, Required: true, Desc: "Key pattern (e.g., 'user:*', 'session:*')"}
	params["limit"] = &schema.ParameterInfo{Type: schema.Integer, Required: false, Desc: "Maximum keys to return (default: 100)"}

	return toolutils.NewTool(&schema.ToolInfo{
		Name:        "redis_keys",
		Desc:        "List Redis keys matching a pattern. Uses SCAN for safe iteration.",
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}, func(ctx context.Context, input *redisKeysInput) (string, error) {
		limit := input.Limit
		if limit <= 0 {
			limit = 100
		}

		rdb := openRedis(input.redisConnInput)
		defer rdb.Close()

		var keys []string
		var cursor uint64
		for {
			var batch []string
			var err error
			batch, cursor, err = rdb.Scan(ctx, cursor, input.Pattern, int64(limit)).Result()
			if err != nil {
				return "", fmt.Errorf("scan failed: %w", err)
			}
			keys = append(keys, batch...)
			if len(keys) >= limit || cursor == 0 {
				break
			}
		}
		if len(keys) > limit {
			keys = keys[:limit]
		}

		output := map[string]interface{}{
			"pattern": input.Pattern,
			"count":   len(keys),
			"keys":    keys,
		}
		data, _ := json.MarshalIndent(output, "", "  ")
		return string(data), nil
	})
}

// formatRedisResult formats Redis result for display
func formatRedisResult(result interface{}) string {
	switch v := result.(type) {
	case string:
		return fmt.Sprintf("\"%s\"", v)
	case int64:
		return fmt.Sprintf("%d", v)
	case []interface{}:
		items := make([]string, len(v))
		for i, item := range v {
			items[i] = formatRedisResult(item)
		}
		return fmt.Sprintf("[%s]", strings.Join(items, ", "))
	case nil:
		return "(nil)"
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

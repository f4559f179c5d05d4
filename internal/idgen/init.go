package idgen

import (
	"log"
	"os"
	"strconv"
)

// Init 初始化默认节点
func Init(nodeID int64) {
	if err := InitNode("default", nodeID); err != nil {
		log.Fatalf("[IDGen] InitNode failed: %v", err)
	}
}

// InitFromEnv 从环境变量初始化默认节点（多实例部署），未配置时回落到节点 1
func InitFromEnv() {
	nodeIDStr := os.Getenv("SNOWFLAKE_NODE_ID")
	if nodeIDStr == "" {
		Init(1)
		return
	}
	nodeID, err := strconv.ParseInt(nodeIDStr, 10, 64)
	if err != nil || nodeID < 0 || nodeID > 1023 {
		log.Fatalf("[IDGen] Invalid SNOWFLAKE_NODE_ID: %v", nodeIDStr)
	}
	Init(nodeID)
	log.Printf("[IDGen] Snowflake node initialized: nodeID=%d", nodeID)
}

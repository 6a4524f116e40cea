package testtool

import (
	"net/http"
	_ "net/http/pprof" // 匯入後會自動註冊 pprof endpoint

	"campus_chat/pkg/config"
	"campus_chat/pkg/logger"
)

// StartPprof 非 production 環境才啟動 pprof, addr 空字串表示不啟動
func StartPprof(addr string) {
	if config.IsProduction() {
		logger.Log.Info("Production environment detected, pprof is disabled.")
		return
	}
	if addr == "" {
		return
	}

	go func() {
		logger.Log.Infof("Starting pprof server on", addr)
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Log.Errorf("pprof server failed: ", err)
		}
	}()
}

// 常用:
//   go tool pprof http://<pprof_addr>/debug/pprof/profile?seconds=30
//   go tool pprof http://<pprof_addr>/debug/pprof/goroutine
// ws 連線多時看 goroutine, 每條連線常駐讀寫各一個

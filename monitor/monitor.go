package monitor

import (
	"crypto/subtle"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

const monitorPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1.0" />
  <title>Diagnostics API Monitor</title>
  <style>
    body { background: #111827; color: #e5e7eb; font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; padding: 20px; }
    .container { max-width: 1100px; margin: 0 auto; }
    .card { background: rgba(255,255,255,0.05); border: 1px solid rgba(255,255,255,0.1); border-radius: 12px; padding: 1rem 1.5rem; margin-bottom: 1.5rem; }
    #logs { max-height: 480px; overflow: auto; white-space: pre-wrap; font-size: 12px; }
    button { background: #2563eb; color: #fff; border: 0; border-radius: 8px; padding: 6px 14px; cursor: pointer; }
  </style>
</head>
<body>
  <div class="container">
    <h1>Diagnostics API Monitor</h1>
    <div class="card"><span id="status">Status: checking...</span></div>
    <div class="card">
      <button onclick="toggleLive()" id="toggleBtn">Pause Live Logs</button>
      <pre id="logs">Loading logs...</pre>
    </div>
  </div>
  <script>
    const params = new URLSearchParams(window.location.search);
    const token = params.get('token') || '';
    let liveLogs = true;
    const logsElement = document.getElementById('logs');
    const statusElement = document.getElementById('status');

    function fetchStatus() {
      fetch('/api/health')
        .then(res => res.json())
        .then(body => { statusElement.textContent = 'Status: ' + (body.success ? 'online' : 'degraded'); })
        .catch(() => { statusElement.textContent = 'Status: offline'; });
    }

    function fetchLogs() {
      if (!liveLogs) return;
      fetch('/logs?token=' + encodeURIComponent(token))
        .then(res => res.text())
        .then(text => { logsElement.textContent = text; logsElement.scrollTop = logsElement.scrollHeight; });
    }

    function toggleLive() {
      liveLogs = !liveLogs;
      document.getElementById('toggleBtn').textContent = liveLogs ? 'Pause Live Logs' : 'Resume Live Logs';
    }

    fetchStatus();
    fetchLogs();
    setInterval(fetchStatus, 5000);
    setInterval(fetchLogs, 5000);
  </script>
</body>
</html>`

// RegisterMonitorPage serves a small status page that polls health and logs.
func RegisterMonitorPage(router *gin.Engine) {
	router.GET("/monitor", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(monitorPage))
	})
}

// RegisterLogsRoute streams the log file to callers presenting token. An
// empty token disables the route.
func RegisterLogsRoute(router *gin.Engine, logPath, token string) {
	router.GET("/logs", func(c *gin.Context) {
		if token == "" || subtle.ConstantTimeCompare([]byte(c.Query("token")), []byte(token)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": gin.H{"code": "UNAUTHORIZED", "message": "unauthorized"}})
			return
		}
		logData, err := os.ReadFile(logPath)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": gin.H{"code": "INTERNAL_ERROR", "message": "unable to read log"}})
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", logData)
	})
}

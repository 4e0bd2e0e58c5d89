package api

const busDocsHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Bus Socket Protocol - Luna Bus Host</title>
  <style>
    *, *::before, *::after { box-sizing: border-box; }
    body {
      margin: 0;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", sans-serif;
      font-size: 14px;
      line-height: 1.65;
      background: #0d1117;
      color: #c9d1d9;
    }
    a { color: #58a6ff; text-decoration: none; }
    nav {
      background: #161b22;
      border-bottom: 1px solid #30363d;
      padding: 0 24px;
      height: 48px;
      display: flex;
      align-items: center;
      gap: 24px;
    }
    nav .brand { font-weight: 600; font-size: 15px; color: #e6edf3; }
    main { max-width: 900px; margin: 0 auto; padding: 32px 16px 64px; }
    h1 { margin: 0 0 8px; font-size: 28px; font-weight: 600; color: #e6edf3; }
    h2 {
      margin: 40px 0 12px;
      font-size: 18px;
      font-weight: 600;
      color: #e6edf3;
      padding-bottom: 8px;
      border-bottom: 1px solid #21262d;
    }
    code, pre { font-family: "SFMono-Regular", Consolas, "Liberation Mono", Menlo, monospace; font-size: 12.5px; }
    pre { background: #161b22; border: 1px solid #30363d; border-radius: 6px; padding: 14px 16px; overflow-x: auto; }
    table { border-collapse: collapse; width: 100%; margin: 0 0 16px; }
    th, td { border: 1px solid #30363d; padding: 6px 10px; text-align: left; vertical-align: top; }
    th { background: #161b22; color: #e6edf3; }
  </style>
</head>
<body>
  <nav>
    <span class="brand">Luna Bus Host</span>
    <a href="/docs">REST API</a>
  </nav>
  <main>
    <h1>Bus Socket</h1>
    <p>
      <code>GET /bus</code> upgrades to a WebSocket. Each text frame is one JSON object with an
      <code>op</code> field. Calls begun on a connection are cancelled when it closes.
    </p>

    <h2>Client frames</h2>
    <table>
      <thead><tr><th>op</th><th>Fields</th><th>Effect</th></tr></thead>
      <tbody>
        <tr><td><code>call</code></td><td><code>url</code>, <code>params</code> (object)</td><td>Begins a call. Answered with <code>begin</code>.</td></tr>
        <tr><td><code>cancel</code></td><td><code>id</code></td><td>Cancels a pending call or subscription. No further responses arrive for it.</td></tr>
      </tbody>
    </table>

    <h2>Server frames</h2>
    <table>
      <thead><tr><th>op</th><th>Fields</th><th>Meaning</th></tr></thead>
      <tbody>
        <tr><td><code>begin</code></td><td><code>id</code>, <code>url</code></td><td>Call id allocated (<code>psb-N</code>).</td></tr>
        <tr><td><code>response</code></td><td><code>id</code>, <code>response</code></td><td>A service response. Subscriptions (<code>"subscribe": true</code> or <code>"watch": true</code>) may receive several.</td></tr>
        <tr><td><code>error</code></td><td><code>error</code>, optional <code>id</code></td><td>Malformed frame, unknown op, invalid URL, unknown id or rate limit.</td></tr>
      </tbody>
    </table>

    <h2>Example</h2>
    <pre><code>const sock = new WebSocket('ws://127.0.0.1:8290/bus');
sock.onopen = () => sock.send(JSON.stringify({
  op: 'call',
  url: 'palm://com.palm.systemservice/time/getSystemTime',
  params: { subscribe: true },
}));
sock.onmessage = (e) => {
  const f = JSON.parse(e.data);
  if (f.op === 'response') console.log(f.id, f.response.localtime);
};</code></pre>

    <h2>Rate limit</h2>
    <p>
      Client frames are limited per connection by <code>LUNA_WS_RATE</code> (frames per second)
      and <code>LUNA_WS_BURST</code>. Frames over the limit are answered with an
      <code>error</code> frame and otherwise ignored.
    </p>

    <h2>Event feed</h2>
    <p>
      <code>GET /events</code> streams every call, delivery and cancellation as server-sent
      events. Filter with <code>?kinds=call,deliver,drop,cancel</code>.
    </p>
  </main>
</body>
</html>`

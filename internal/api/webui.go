package api

const webUI = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Face Attendance Console</title>
<style>
*{box-sizing:border-box;margin:0;padding:0}
body{font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;background:#f5f5f5;color:#333;line-height:1.6}
a{color:#f97316;text-decoration:none;cursor:pointer}
a:hover{text-decoration:underline}

/* Header */
.hdr{background:linear-gradient(135deg,#f97316 0%,#ea580c 100%);color:#fff;padding:14px 20px;display:flex;align-items:center;justify-content:space-between;position:sticky;top:0;z-index:100}
.hdr h1{font-size:18px;font-weight:600}
.hdr-right{display:flex;align-items:center;font-size:13px;gap:10px}
.hdr-dot{width:10px;height:10px;border-radius:50%;display:inline-block}
.dot-green{background:#22c55e}.dot-red{background:#ef4444}.dot-yellow{background:#f59e0b}.dot-gray{background:#9ca3af}
.hdr.hidden,.tabs.hidden{display:none}

/* Tab bar */
.tabs{display:flex;border-bottom:2px solid #e5e7eb;background:#fff;padding:0 16px}
.tab{padding:12px 20px;cursor:pointer;font-size:14px;font-weight:500;color:#666;border-bottom:2px solid transparent;margin-bottom:-2px}
.tab:hover{color:#333}
.tab.active{color:#f97316;border-bottom-color:#f97316}

/* Content */
.content{max-width:1000px;margin:0 auto;padding:20px}
.page{display:none}
.page.active{display:block}
.card{background:#fff;border-radius:8px;padding:20px;margin-bottom:16px;box-shadow:0 1px 3px rgba(0,0,0,.1)}
.card h2{font-size:16px;margin-bottom:12px;padding-bottom:8px;border-bottom:1px solid #eee}
.btn{background:#f97316;color:#fff;border:none;padding:9px 18px;border-radius:6px;cursor:pointer;font-size:14px}
.btn:hover{background:#ea580c}
.btn:disabled{background:#d1d5db;cursor:not-allowed}
.btn-secondary{background:#e5e7eb;color:#374151}
.btn-secondary:hover{background:#d1d5db}
.row{display:flex;gap:10px;align-items:center;flex-wrap:wrap}
input[type=text],input[type=email],input[type=password]{width:100%;padding:10px;border:1px solid #d1d5db;border-radius:6px;font-size:14px}

/* Login */
.login{max-width:380px;margin:60px auto}
.field{margin-bottom:14px;position:relative}
.field label{display:block;font-size:13px;margin-bottom:4px;color:#555}
.field.error input{border-color:#ef4444}
.field .msg{color:#ef4444;font-size:12px;min-height:16px}
.eye{position:absolute;right:10px;top:31px;cursor:pointer;font-size:13px;color:#666;user-select:none}
.shake{animation:shake .5s}
@keyframes shake{0%,100%{transform:translateX(0)}20%,60%{transform:translateX(-8px)}40%,80%{transform:translateX(8px)}}
.ok{color:#16a34a;font-weight:500;margin-top:10px}

/* Dashboard table */
table{width:100%;border-collapse:collapse;font-size:14px}
th{background:#f9fafb;text-align:left;padding:10px;border-bottom:2px solid #e5e7eb}
td{padding:10px;border-bottom:1px solid #f0f0f0;vertical-align:middle}
tr[data-student-id]{cursor:pointer}
tr[data-student-id]:hover{background:#fafafa}
.attendance-image{width:56px;height:56px;object-fit:cover;border-radius:6px}
.image-placeholder{width:56px;height:56px;border-radius:6px;background:#e5e7eb;display:flex;align-items:center;justify-content:center;font-size:22px}
.empty{text-align:center;padding:32px;color:#6b7280}
.empty-title{font-size:16px}
.empty-hint{font-size:12px}

/* Notices */
#notices{position:fixed;top:70px;right:16px;z-index:200;display:flex;flex-direction:column;gap:8px}
.notice{padding:10px 14px;border-radius:6px;color:#fff;font-size:13px;box-shadow:0 2px 8px rgba(0,0,0,.15);max-width:340px}
.notice-success{background:#16a34a}.notice-error{background:#dc2626}.notice-warning{background:#d97706}.notice-info{background:#2563eb}

/* Enroll wizard */
.steps{display:flex;gap:8px;margin-bottom:16px}
.step{flex:1;padding:10px;border-radius:6px;background:#f3f4f6;font-size:13px;text-align:center}
.step-active{background:#ffedd5;color:#9a3412}
.step-completed{background:#dcfce7;color:#166534}
.step-error{background:#fee2e2;color:#991b1b}
.drop{border:2px dashed #d1d5db;border-radius:8px;padding:14px}
.drop.dragover{border-color:#f97316;background:#fff7ed}
.bar{height:8px;background:#e5e7eb;border-radius:4px;overflow:hidden;margin-top:8px}
.bar div{height:100%;background:#f97316;width:0}
#enroll-log,#log{background:#1a1a2e;color:#a0aec0;padding:15px;border-radius:6px;font-family:monospace;font-size:13px;max-height:260px;overflow-y:auto}
.log-time{color:#f97316}
.lv-error{color:#f87171}.lv-warn,.lv-warning{color:#fbbf24}.lv-success{color:#4ade80}
</style>
</head>
<body>
<div class="hdr hidden" id="hdr">
  <h1>Face Attendance Console</h1>
  <div class="hdr-right"><span id="feed-text">Feed: unknown</span><span class="hdr-dot dot-gray" id="feed-dot"></span><a id="logout" style="color:#fff">Logout</a></div>
</div>
<div class="tabs hidden" id="tabs">
  <div class="tab" data-page="dashboard">Attendance</div>
  <div class="tab" data-page="enroll">Add Students</div>
  <div class="tab" data-page="logs">Logs</div>
</div>
<div id="notices"></div>

<div class="content">

<div class="page" id="page-login">
  <div class="card login" id="login-card">
    <h2>Sign in</h2>
    <form id="login-form" novalidate>
      <div class="field" id="f-email"><label>Email</label><input type="email" id="email" autocomplete="username"><div class="msg"></div></div>
      <div class="field" id="f-password"><label>Password</label><input type="password" id="password" autocomplete="current-password"><span class="eye" id="eye">show</span><div class="msg"></div></div>
      <button class="btn" type="submit" style="width:100%">Login</button>
    </form>
    <div id="login-ok" class="ok"></div>
    <div class="row" style="margin-top:12px;justify-content:space-between;font-size:13px">
      <a id="forgot">Forgot password?</a><a id="register">Register</a>
    </div>
  </div>
</div>

<div class="page" id="page-dashboard">
  <div class="card">
    <div class="row" style="justify-content:space-between;margin-bottom:12px">
      <h2 style="border:none;margin:0;padding:0">Today's attendance (<span id="att-total">0</span>)</h2>
      <div class="row">
        <input type="text" id="search" placeholder="Search by name or student ID" style="width:260px">
        <button class="btn btn-secondary" id="reload">Reload</button>
        <a class="btn btn-secondary" id="export" href="/api/attendance/export">Export</a>
      </div>
    </div>
    <table>
      <thead><tr><th>#</th><th>Check-in</th><th>Avatar</th><th>Name</th><th>Student ID</th><th>Time</th></tr></thead>
      <tbody id="attendanceTableBody"></tbody>
    </table>
  </div>
</div>

<div class="page" id="page-enroll">
  <div class="card">
    <h2>Add Students</h2>
    <div class="steps" id="steps"></div>
    <div class="drop row" id="sheet-drop" style="margin-bottom:10px">
      <span>Drop the Excel file here or</span>
      <label class="btn btn-secondary">Select Excel file<input type="file" id="sheet" accept=".xlsx,.xls" hidden></label>
      <span id="sheet-info">No file selected</span>
      <a id="sheet-remove" style="display:none">remove</a>
    </div>
    <div class="row" style="margin-bottom:10px">
      <label class="btn btn-secondary">Select image folder<input type="file" id="images" webkitdirectory directory multiple hidden></label>
      <span id="images-info">No folder selected</span>
      <a id="images-remove" style="display:none">remove</a>
    </div>
    <div class="bar"><div id="images-bar"></div></div>
    <div class="row" style="margin:14px 0">
      <button class="btn" id="submit" disabled>Start Processing</button>
    </div>
    <div id="enroll-log"></div>
  </div>
</div>

<div class="page" id="page-logs">
  <div class="card">
    <h2>Console Log</h2>
    <div id="log"></div>
  </div>
</div>

</div>

<script>
var currentPage = null, pollTimer = null, enrollTimer = null, searchTimer = null, returnTimer = null;

function $(id) { return document.getElementById(id); }

function esc(s) {
  var d = document.createElement('div');
  d.textContent = s == null ? '' : String(s);
  return d.innerHTML;
}

function loggedIn() { return !!localStorage.getItem('userToken'); }

function showPage(name) {
  if (name !== 'login' && !loggedIn()) name = 'login';
  currentPage = name;
  document.querySelectorAll('.page').forEach(function(p) { p.classList.toggle('active', p.id === 'page-' + name); });
  document.querySelectorAll('.tab').forEach(function(t) { t.classList.toggle('active', t.dataset.page === name); });
  $('hdr').classList.toggle('hidden', name === 'login');
  $('tabs').classList.toggle('hidden', name === 'login');

  clearInterval(pollTimer); clearInterval(enrollTimer);
  if (name === 'dashboard') { refreshTable(); pollTimer = setInterval(refreshTable, 2000); }
  if (name === 'enroll') { refreshEnroll(); enrollTimer = setInterval(refreshEnroll, 1000); }
  if (name === 'logs') { refreshLogs(); pollTimer = setInterval(refreshLogs, 3000); }
  if (location.hash !== '#' + name) history.replaceState(null, '', '#' + name);
}

document.querySelectorAll('.tab').forEach(function(t) {
  t.addEventListener('click', function() { showPage(t.dataset.page); });
});
window.addEventListener('hashchange', function() { showPage(location.hash.slice(1) || 'dashboard'); });

// Notices
var shown = {}, audio = null;
function chime() {
  try {
    audio = audio || new (window.AudioContext || window.webkitAudioContext)();
    var osc = audio.createOscillator(), gain = audio.createGain();
    osc.frequency.value = 880;
    gain.gain.setValueAtTime(0.2, audio.currentTime);
    gain.gain.exponentialRampToValueAtTime(0.001, audio.currentTime + 0.25);
    osc.connect(gain);
    gain.connect(audio.destination);
    osc.start();
    osc.stop(audio.currentTime + 0.25);
  } catch (e) {}
}

function refreshNotices() {
  fetch('/api/notices').then(function(r){return r.json()}).then(function(data) {
    var box = $('notices'), ring = false;
    data.notices.forEach(function(n) {
      if (shown[n.id]) return;
      shown[n.id] = true;
      if (n.level === 'success' && n.message.indexOf('has successfully checked in') >= 0) ring = true;
    });
    if (ring && data.sound) chime();
    box.innerHTML = data.notices.map(function(n) {
      return '<div class="notice notice-' + esc(n.level) + '">' + esc(n.message) + '</div>';
    }).join('');
  }).catch(function(){});
}

function refreshStatus() {
  fetch('/api/status').then(function(r){return r.json()}).then(function(data) {
    var dot = $('feed-dot'), text = $('feed-text');
    if (!data.feed_enabled) { dot.className = 'hdr-dot dot-gray'; text.textContent = 'Feed: disabled'; return; }
    if (data.feed.connected) { dot.className = 'hdr-dot dot-green'; text.textContent = 'Feed: live'; }
    else if (data.feed.reconnecting) { dot.className = 'hdr-dot dot-yellow'; text.textContent = 'Feed: reconnecting'; }
    else { dot.className = 'hdr-dot dot-red'; text.textContent = 'Feed: offline'; }
  }).catch(function(){});
}

// Login
$('eye').addEventListener('click', function() {
  var p = $('password');
  p.type = p.type === 'password' ? 'text' : 'password';
  this.textContent = p.type === 'password' ? 'show' : 'hide';
});

function setFieldError(id, msg) {
  var f = $('f-' + id);
  f.classList.toggle('error', !!msg);
  f.querySelector('.msg').textContent = msg || '';
}

['email', 'password'].forEach(function(id) {
  $(id).addEventListener('input', function() { setFieldError(id, ''); });
});

$('login-form').addEventListener('submit', function(e) {
  e.preventDefault();
  $('login-ok').textContent = '';
  fetch('/api/login', {
    method: 'POST', headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({email: $('email').value, password: $('password').value})
  }).then(function(r){return r.json()}).then(function(res) {
    var errs = res.field_errors || {};
    setFieldError('email', errs.email);
    setFieldError('password', errs.password);
    if (res.shake) {
      var c = $('login-card');
      c.classList.add('shake');
      setTimeout(function() { c.classList.remove('shake'); }, 500);
    }
    if (res.success) {
      $('login-ok').textContent = res.message;
      setTimeout(function() {
        alert(res.redirect_text);
        localStorage.setItem('userToken', $('email').value.trim());
        showPage('dashboard');
      }, (res.redirect_after || 0) / 1e6);
    }
  });
});

function showHint(kind) {
  fetch('/api/login/hint?kind=' + kind).then(function(r){return r.json()}).then(function(d) { alert(d.hint); });
}
$('forgot').addEventListener('click', function() { showHint('forgot'); });
$('register').addEventListener('click', function() { showHint('register'); });

$('logout').addEventListener('click', function() {
  if (confirm('Are you sure you want to log out?')) {
    localStorage.removeItem('userToken');
    sessionStorage.clear();
    showPage('login');
  }
});

// Dashboard
function refreshTable() {
  var q = encodeURIComponent($('search').value);
  fetch('/api/attendance/table?q=' + q).then(function(r){return r.text()}).then(function(html) {
    $('attendanceTableBody').innerHTML = html;
  }).catch(function(){});
  fetch('/api/attendance?q=' + q).then(function(r){return r.json()}).then(function(d) {
    $('att-total').textContent = d.total;
  }).catch(function(){});
  $('export').href = '/api/attendance/export?q=' + q;
}

$('search').addEventListener('input', function() {
  clearTimeout(searchTimer);
  searchTimer = setTimeout(refreshTable, 150);
});

$('reload').addEventListener('click', function() {
  fetch('/api/attendance/reload', {method: 'POST'}).then(refreshTable);
});

$('attendanceTableBody').addEventListener('click', function(e) {
  var tr = e.target.closest('tr[data-student-id]');
  if (tr) fetch('/api/attendance/' + encodeURIComponent(tr.dataset.studentId) + '/select', {method: 'POST'});
});

// Enroll
function renderEnroll(s) {
  $('steps').innerHTML = s.steps.map(function(st) {
    return '<div class="step step-' + st.status + '">' + st.number + '. ' + esc(st.title) + '</div>';
  }).join('');
  $('sheet-info').textContent = s.spreadsheet ? s.spreadsheet.name + ' (' + s.spreadsheet.size_text + ')' : 'No file selected';
  $('sheet-remove').style.display = s.spreadsheet ? '' : 'none';
  $('images-info').textContent = s.images_text || 'No folder selected';
  $('images-remove').style.display = s.images ? '' : 'none';
  $('images-bar').style.width = s.progress + '%';
  $('submit').disabled = !s.can_submit;
  $('submit').textContent = s.button_label;
  var log = $('enroll-log');
  log.innerHTML = (s.log || []).map(function(e) {
    return '<div class="lv-' + esc(e.level) + '"><span class="log-time">[' + new Date(e.timestamp).toLocaleTimeString() + ']</span> ' + esc(e.message) + '</div>';
  }).join('');
  log.scrollTop = log.scrollHeight;
  if (s.return_prompt_at && !returnTimer) {
    returnTimer = setTimeout(function() {
      returnTimer = null;
      if (confirm('Return to the attendance dashboard?')) showPage('dashboard');
    }, Math.max(0, new Date(s.return_prompt_at) - Date.now()));
  }
}

function refreshEnroll() {
  fetch('/api/enroll').then(function(r){return r.json()}).then(renderEnroll).catch(function(){});
}

function enrollCall(method, url, body) {
  return fetch(url, {method: method, body: body}).then(function(r){return r.json()}).then(function(d) {
    if (d.success === false) { alert(d.error); refreshEnroll(); return; }
    renderEnroll(d);
  });
}

function uploadSpreadsheet(f) {
  var name = f.name.toLowerCase();
  if (!name.endsWith('.xlsx') && !name.endsWith('.xls')) {
    alert('Please select Excel file (.xlsx or .xls)');
    return;
  }
  var fd = new FormData();
  fd.append('file', f, f.name);
  enrollCall('POST', '/api/enroll/spreadsheet', fd);
}

$('sheet').addEventListener('change', function() {
  if (this.files[0]) uploadSpreadsheet(this.files[0]);
  this.value = '';
});

var drop = $('sheet-drop');
drop.addEventListener('dragover', function(e) {
  e.preventDefault();
  drop.classList.add('dragover');
});
drop.addEventListener('dragleave', function(e) {
  e.preventDefault();
  drop.classList.remove('dragover');
});
drop.addEventListener('drop', function(e) {
  e.preventDefault();
  drop.classList.remove('dragover');
  var files = e.dataTransfer.files;
  if (files.length > 0) uploadSpreadsheet(files[0]);
});

$('images').addEventListener('change', function() {
  if (this.files.length === 0) return;
  var fd = new FormData();
  for (var i = 0; i < this.files.length; i++) {
    var f = this.files[i];
    fd.append('files', f, f.name);
    fd.append('paths', f.webkitRelativePath || f.name);
  }
  enrollCall('POST', '/api/enroll/images', fd);
  this.value = '';
});

$('sheet-remove').addEventListener('click', function() { enrollCall('DELETE', '/api/enroll/spreadsheet'); });
$('images-remove').addEventListener('click', function() { enrollCall('DELETE', '/api/enroll/images'); });
$('submit').addEventListener('click', function() { enrollCall('POST', '/api/enroll/submit'); });

// Logs
function refreshLogs() {
  fetch('/api/logs').then(function(r){return r.json()}).then(function(data) {
    var el = $('log');
    el.innerHTML = data.logs.map(function(e) {
      return '<div class="lv-' + esc(e.level) + '"><span class="log-time">[' + new Date(e.timestamp).toLocaleTimeString() + ']</span> ' + esc(e.message) + '</div>';
    }).join('');
    el.scrollTop = el.scrollHeight;
  }).catch(function(){});
}

setInterval(refreshNotices, 1000);
setInterval(refreshStatus, 5000);
refreshStatus();
showPage(location.hash.slice(1) || (loggedIn() ? 'dashboard' : 'login'));
</script>
</body>
</html>`

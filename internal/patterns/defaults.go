package patterns

// defaultCatalogYAML seeds the registry when no catalog file is configured
// or the configured file is missing, mirroring the teacher's
// Anonymizer.compilePatterns hardcoded fallback table (and
// regex_service.py's _load_default_patterns in original_source/).
const defaultCatalogYAML = `
parsing_patterns:
  fortinet_log_kv:
    pattern: '(\w+)="([^"]*)"|(\w+)=(\S+)'
    confidence: 0.92
    parser_type: generic_kv
  syslog_format:
    pattern: '^(?P<month>\w{3})\s+(?P<day>\d{1,2})\s+(?P<time>\d{2}:\d{2}:\d{2})\s+(?P<host>\S+)\s+(?P<process>\S+?)(?:\[(?P<pid>\d+)\])?:\s+(?P<message>.*)$'
    confidence: 0.85
  syslog_bracket_format:
    pattern: '^\[(?P<timestamp>[^\]]+)\]\s+(?P<host>\S+)\s+(?P<process>\S+):\s+(?P<message>.*)$'
    confidence: 0.8
  timestamp_bracket_format:
    pattern: '^\[(?P<timestamp>[^\]]+)\]\s+(?P<message>.*)$'
    confidence: 0.6
  timestamp_level_format:
    pattern: '^(?P<timestamp>\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}(?:\.\d+)?)\s+(?P<level>[A-Z]+)\s+(?P<message>.*)$'
    confidence: 0.75
  apache_clf:
    pattern: '^(?P<ip>\S+) \S+ \S+ \[(?P<timestamp>[^\]]+)\] "(?P<method>[A-Z]+) (?P<path>\S+) (?P<protocol>[^"]+)" (?P<status>\d+) (?P<size>\S+)$'
    confidence: 0.9
  cef_format:
    pattern: '^CEF:(?P<cefVersion>\d+)\|(?P<deviceVendor>[^|]*)\|(?P<deviceProduct>[^|]*)\|(?P<deviceVersion>[^|]*)\|(?P<signatureId>[^|]*)\|(?P<name>[^|]*)\|(?P<severity>[^|]*)\|(?P<extension>.*)$'
    confidence: 0.88
    parser_type: cef
  generic_kv:
    pattern: '([A-Za-z0-9_.\-]+)\s*=\s*(?:"(.*?)"|(\S+))'
    confidence: 0.5
    parser_type: generic_kv
  timestamp_pipe_format:
    pattern: '^(?P<timestamp>\S+)\|(?P<message>.*)$'
    confidence: 0.3
  git_config_format:
    pattern: '^\[(?P<section>\w+)\]$'
    confidence: 0.2
  git_config_key_value:
    pattern: '^(?P<key>\w+)\s*=\s*(?P<value>.*)$'
    confidence: 0.2

anonymization_patterns:
  ip_address:
    pattern: '\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b'
    replacement: <IP>
    priority: 1
  mac_address:
    pattern: '\b(?:[0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}\b'
    replacement: <MAC>
    priority: 2
  email:
    pattern: '\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b'
    replacement: <EMAIL>
    priority: 3
  url:
    pattern: 'https?://[^\s"]+'
    replacement: <URL>
    priority: 4
  hash_md5:
    pattern: '\b[a-fA-F0-9]{32}\b'
    replacement: <HASH>
    priority: 5
  hash_sha256:
    pattern: '\b[a-fA-F0-9]{64}\b'
    replacement: <HASH>
    priority: 6

cleaning_patterns:
  trailing_whitespace:
    pattern: '[ \t]+$'
    replacement: ''
    priority: 1
  repeated_spaces:
    pattern: '  +'
    replacement: ' '
    priority: 2

detection_patterns:
  ip_address:
    pattern: '\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b'
  mac_address:
    pattern: '\b(?:[0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}\b'
  email:
    pattern: '\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b'
  url:
    pattern: 'https?://[^\s"]+'
  uuid:
    pattern: '\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b'
  hash_md5:
    pattern: '\b[a-fA-F0-9]{32}\b'
  hash_sha256:
    pattern: '\b[a-fA-F0-9]{64}\b'
  timestamp_iso:
    pattern: '\b\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+\-]\d{2}:?\d{2})?\b'
  timestamp_log:
    pattern: '\b\d{4}-\d{2}-\d{2}[ ]\d{2}:\d{2}:\d{2}\b'
  unix_timestamp:
    pattern: '\b1[5-8]\d{8}(?:\d{3})?\b'
  severity_level:
    pattern: '(?i)\b(emerg(?:ency)?|alert|crit(?:ical)?|err(?:or)?|warn(?:ing)?|notice|info(?:rmational)?|debug)\b'
  process_id:
    pattern: '(?i)\bpid[=: ]+(\d+)\b'
  status_code:
    pattern: '\b[1-5][0-9]{2}\b'
  hostname:
    pattern: '\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}\b'
  file_path:
    pattern: '(?:/[\w.\-]+)+'

security_patterns:
  api_key:
    pattern: '(?i)(?:api[_\-]?key|secret|token)[\s"'':=]+([a-zA-Z0-9_\-.]{16,})'
`

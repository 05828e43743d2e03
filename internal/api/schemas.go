package api

// Amount arrives as a string so decimal values survive the trip without
// float rounding.
const createTransferSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["from_account_id", "to_account_id", "amount", "currency"],
  "properties": {
    "from_account_id": {"type": "string", "minLength": 1, "maxLength": 64},
    "to_account_id": {"type": "string", "minLength": 1, "maxLength": 64},
    "amount": {"type": "string", "pattern": "^[0-9]+(\\.[0-9]{1,2})?$"},
    "currency": {"type": "string", "pattern": "^[A-Z]{3}$"},
    "description": {"type": "string", "maxLength": 255}
  }
}`
